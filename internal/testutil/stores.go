package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/omnibill/omnibill/internal/domain/coupon"
	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/pricing"
	"github.com/omnibill/omnibill/internal/domain/recurringinvoice"
	svc "github.com/omnibill/omnibill/internal/domain/service"
	"github.com/omnibill/omnibill/internal/domain/tax"
	"github.com/omnibill/omnibill/internal/domain/transaction"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// SetupContext returns a context carrying the default company and user IDs.
func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetCompanyID(ctx, types.DefaultCompanyID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	return ctx
}

// InMemoryTaxRuleStore implements tax.Repository. Tax rules are company-wide,
// so ListForClient returns every rule ordered by level.
type InMemoryTaxRuleStore struct {
	*InMemoryStore[*tax.TaxRule]
}

func NewInMemoryTaxRuleStore() *InMemoryTaxRuleStore {
	return &InMemoryTaxRuleStore{InMemoryStore: NewInMemoryStore[*tax.TaxRule]()}
}

func (s *InMemoryTaxRuleStore) Get(ctx context.Context, id string) (*tax.TaxRule, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryTaxRuleStore) ListForClient(ctx context.Context, clientID string) ([]*tax.TaxRule, error) {
	rules, err := s.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Level < rules[j].Level })
	return rules, nil
}

func (s *InMemoryTaxRuleStore) Create(ctx context.Context, rule *tax.TaxRule) error {
	return s.InMemoryStore.Create(ctx, rule.ID, rule)
}

func (s *InMemoryTaxRuleStore) Update(ctx context.Context, rule *tax.TaxRule) error {
	return s.InMemoryStore.Update(ctx, rule.ID, rule)
}

func (s *InMemoryTaxRuleStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

// InMemoryCouponStore implements coupon.Repository.
type InMemoryCouponStore struct {
	*InMemoryStore[*coupon.Coupon]
}

func NewInMemoryCouponStore() *InMemoryCouponStore {
	return &InMemoryCouponStore{InMemoryStore: NewInMemoryStore[*coupon.Coupon]()}
}

func (s *InMemoryCouponStore) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryCouponStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	matches, err := s.List(ctx, func(c *coupon.Coupon) bool { return c.Code == code })
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ierr.NewError("coupon not found").
			WithHintf("no coupon with code %s", code).
			Mark(ierr.ErrNotFound)
	}
	return matches[0], nil
}

func (s *InMemoryCouponStore) IncrementUsage(ctx context.Context, id string) error {
	cpn, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	cpn.Uses++
	return s.InMemoryStore.Update(ctx, id, cpn)
}

// InMemoryInvoiceStore implements invoice.Repository. CreateHook, when set,
// runs before each create and can inject failures.
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	CreateHook func(*invoice.Invoice) error
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{InMemoryStore: NewInMemoryStore[*invoice.Invoice]()}
}

func (s *InMemoryInvoiceStore) CreateWithLineItems(ctx context.Context, inv *invoice.Invoice) error {
	if s.CreateHook != nil {
		if err := s.CreateHook(inv); err != nil {
			return err
		}
	}
	for _, line := range inv.Lines {
		line.InvoiceID = inv.ID
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) ListByClient(ctx context.Context, clientID string) ([]*invoice.Invoice, error) {
	invoices, err := s.List(ctx, func(inv *invoice.Invoice) bool { return inv.ClientID == clientID })
	if err != nil {
		return nil, err
	}
	sort.Slice(invoices, func(i, j int) bool { return invoices[i].ID < invoices[j].ID })
	return invoices, nil
}

// InMemoryRecurringInvoiceStore implements recurringinvoice.Repository,
// keeping the definition-to-invoice linkage in memory.
type InMemoryRecurringInvoiceStore struct {
	*InMemoryStore[*recurringinvoice.Definition]

	mu     sync.Mutex
	cycles map[string][]string
}

func NewInMemoryRecurringInvoiceStore() *InMemoryRecurringInvoiceStore {
	return &InMemoryRecurringInvoiceStore{
		InMemoryStore: NewInMemoryStore[*recurringinvoice.Definition](),
		cycles:        make(map[string][]string),
	}
}

func (s *InMemoryRecurringInvoiceStore) Get(ctx context.Context, id string) (*recurringinvoice.Definition, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryRecurringInvoiceStore) ListDue(ctx context.Context, asOf time.Time) ([]*recurringinvoice.Definition, error) {
	defs, err := s.List(ctx, func(d *recurringinvoice.Definition) bool {
		return !d.DateRenews.After(asOf)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

func (s *InMemoryRecurringInvoiceStore) Update(ctx context.Context, def *recurringinvoice.Definition) error {
	return s.InMemoryStore.Update(ctx, def.ID, def)
}

func (s *InMemoryRecurringInvoiceStore) CountCreated(ctx context.Context, definitionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cycles[definitionID]), nil
}

func (s *InMemoryRecurringInvoiceStore) RecordCycle(ctx context.Context, definitionID, invoiceID string, newDateRenews, newDateLastRenewed time.Time) error {
	def, err := s.InMemoryStore.Get(ctx, definitionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cycles[definitionID] = append(s.cycles[definitionID], invoiceID)
	s.mu.Unlock()

	def.DateRenews = newDateRenews
	last := newDateLastRenewed
	def.DateLastRenewed = &last
	return s.InMemoryStore.Update(ctx, definitionID, def)
}

// InMemoryTransactionStore implements transaction.Repository.
type InMemoryTransactionStore struct {
	*InMemoryStore[*transaction.Transaction]
}

func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{InMemoryStore: NewInMemoryStore[*transaction.Transaction]()}
}

func (s *InMemoryTransactionStore) Create(ctx context.Context, txn *transaction.Transaction) error {
	return s.InMemoryStore.Create(ctx, txn.ID, txn)
}

func (s *InMemoryTransactionStore) ListByClient(ctx context.Context, clientID string) ([]*transaction.Transaction, error) {
	txns, err := s.List(ctx, func(t *transaction.Transaction) bool { return t.ClientID == clientID })
	if err != nil {
		return nil, err
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].ID < txns[j].ID })
	return txns, nil
}

// InMemoryServiceStore implements service.Repository.
type InMemoryServiceStore struct {
	*InMemoryStore[*svc.Service]
}

func NewInMemoryServiceStore() *InMemoryServiceStore {
	return &InMemoryServiceStore{InMemoryStore: NewInMemoryStore[*svc.Service]()}
}

func (s *InMemoryServiceStore) Get(ctx context.Context, id string) (*svc.Service, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryServiceStore) Update(ctx context.Context, service *svc.Service) error {
	return s.InMemoryStore.Update(ctx, service.ID, service)
}

func (s *InMemoryServiceStore) ListByClient(ctx context.Context, clientID string) ([]*svc.Service, error) {
	services, err := s.List(ctx, func(sv *svc.Service) bool { return sv.ClientID == clientID })
	if err != nil {
		return nil, err
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services, nil
}

// InMemoryPricingStore implements pricing.Repository over two generic stores.
type InMemoryPricingStore struct {
	pricings *InMemoryStore[*pricing.PackagePricing]
	packages *InMemoryStore[*pricing.Package]
}

func NewInMemoryPricingStore() *InMemoryPricingStore {
	return &InMemoryPricingStore{
		pricings: NewInMemoryStore[*pricing.PackagePricing](),
		packages: NewInMemoryStore[*pricing.Package](),
	}
}

func (s *InMemoryPricingStore) AddPricing(ctx context.Context, p *pricing.PackagePricing) error {
	return s.pricings.Create(ctx, p.ID, p)
}

func (s *InMemoryPricingStore) AddPackage(ctx context.Context, pkg *pricing.Package) error {
	return s.packages.Create(ctx, pkg.ID, pkg)
}

func (s *InMemoryPricingStore) GetPricing(ctx context.Context, id string) (*pricing.PackagePricing, error) {
	return s.pricings.Get(ctx, id)
}

func (s *InMemoryPricingStore) GetPackage(ctx context.Context, id string) (*pricing.Package, error) {
	return s.packages.Get(ctx, id)
}

func (s *InMemoryPricingStore) ListPricings(ctx context.Context, packageID string) ([]*pricing.PackagePricing, error) {
	pricings, err := s.pricings.List(ctx, func(p *pricing.PackagePricing) bool { return p.PackageID == packageID })
	if err != nil {
		return nil, err
	}
	sort.Slice(pricings, func(i, j int) bool { return pricings[i].ID < pricings[j].ID })
	return pricings, nil
}

// FixedRateConverter converts currencies through a static rate table keyed
// "from:to". Missing rates fail, matching the production contract.
type FixedRateConverter struct {
	Rates map[string]decimal.Decimal
}

func NewFixedRateConverter(rates map[string]decimal.Decimal) *FixedRateConverter {
	return &FixedRateConverter{Rates: rates}
}

func (c *FixedRateConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	rate, ok := c.Rates[fmt.Sprintf("%s:%s", from, to)]
	if !ok {
		return decimal.Zero, ierr.NewError("exchange rate unavailable").
			WithHintf("no rate configured from %s to %s", from, to).
			Mark(ierr.ErrDependency)
	}
	return amount.Mul(rate), nil
}
