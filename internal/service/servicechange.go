package service

import (
	"context"
	"fmt"
	"time"

	"github.com/omnibill/omnibill/internal/domain/coupon"
	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/pricing"
	"github.com/omnibill/omnibill/internal/domain/proration"
	svc "github.com/omnibill/omnibill/internal/domain/service"
	"github.com/omnibill/omnibill/internal/domain/transaction"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// OptionChangeType classifies one config option mutation of a service change.
type OptionChangeType string

const (
	OptionChangeAdd    OptionChangeType = "add"
	OptionChangeEdit   OptionChangeType = "edit"
	OptionChangeDelete OptionChangeType = "delete"
)

// OptionChange describes one config option mutation. Old is set for edit and
// delete, New for add and edit.
type OptionChange struct {
	Type OptionChangeType
	Old  *pricing.PackageOption
	New  *pricing.PackageOption
}

// ChangeParams is the input to billing one mid-term service change. OldService
// reflects the state before the change, NewService the desired state after.
type ChangeParams struct {
	Billing types.BillingContext
	Now     time.Time

	OldService *svc.Service
	NewService *svc.Service
	OldPricing *pricing.PackagePricing
	NewPricing *pricing.PackagePricing
	OldPackage *pricing.Package
	NewPackage *pricing.Package

	OptionChanges []OptionChange

	// Coupon is the coupon bound to the old service, if any. It only discounts
	// the change when it is recurring and bound to the new package.
	Coupon *coupon.Coupon
}

// ChangeResult reports what billing one service change produced. Exactly one
// of InvoiceID and TransactionID is set when NetAmount is non-zero.
type ChangeResult struct {
	// NetAmount is positive when an invoice was created, negative when the
	// client was credited, zero when the change washed out
	NetAmount     decimal.Decimal `json:"net_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Credit        decimal.Decimal `json:"credit"`
	InvoiceID     *string         `json:"invoice_id,omitempty"`
	TransactionID *string         `json:"transaction_id,omitempty"`
}

// ServiceChangeService prices mid-term service changes. Each upgraded or
// downgraded component is netted over the remaining time until the service's
// renew date; the positive side becomes invoice lines and the negative side an
// account credit, with at most one artifact created per change.
type ServiceChangeService interface {
	BillChange(ctx context.Context, params ChangeParams) (*ChangeResult, error)
}

type serviceChangeService struct {
	ServiceParams
	totals TotalsService
}

func NewServiceChangeService(params ServiceParams) ServiceChangeService {
	return &serviceChangeService{
		ServiceParams: params,
		totals:        NewTotalsService(params),
	}
}

// chargeLine is one signed proration delta before partitioning.
type chargeLine struct {
	description string
	amount      decimal.Decimal
}

func (s *serviceChangeService) BillChange(ctx context.Context, params ChangeParams) (*ChangeResult, error) {
	if err := s.validateChange(params); err != nil {
		return nil, err
	}

	// A service with no renew date never has remaining paid time to reprice.
	if params.NewService.DateRenews == nil {
		return &ChangeResult{NetAmount: decimal.Zero}, nil
	}
	renewDate := *params.NewService.DateRenews
	if !renewDate.After(params.Now) {
		// the cycle already lapsed; renewal billing covers the new state
		return &ChangeResult{NetAmount: decimal.Zero}, nil
	}

	calc, err := proration.NewCalculator(params.Billing)
	if err != nil {
		return nil, err
	}

	invCurrency := params.NewService.EffectiveCurrency(params.NewPricing)

	deltas, err := s.collectDeltas(ctx, calc, params, renewDate, invCurrency)
	if err != nil {
		return nil, err
	}

	// partition into billable lines and the credit pool
	var positive []chargeLine
	creditPool := decimal.Zero
	for _, d := range deltas {
		switch {
		case d.amount.GreaterThan(decimal.Zero):
			positive = append(positive, d)
		case d.amount.LessThan(decimal.Zero):
			creditPool = creditPool.Add(d.amount.Neg())
		}
	}
	positiveSubtotal := decimal.Zero
	for _, p := range positive {
		positiveSubtotal = positiveSubtotal.Add(p.amount)
	}

	discount, creditOffset, err := s.changeCouponDiscount(ctx, params, invCurrency, positiveSubtotal, creditPool)
	if err != nil {
		return nil, err
	}
	creditPool = creditPool.Sub(creditOffset)

	net := positiveSubtotal.Sub(discount).Sub(creditPool)
	net = types.RoundToCurrencyPrecision(net, invCurrency)

	result := &ChangeResult{
		NetAmount: net,
		Discount:  types.RoundToCurrencyPrecision(discount, invCurrency),
		Credit:    types.RoundToCurrencyPrecision(creditPool, invCurrency),
	}

	switch {
	case net.GreaterThan(decimal.Zero):
		inv, err := s.createChangeInvoice(ctx, params, invCurrency, positive, discount, creditPool)
		if err != nil {
			return nil, err
		}
		result.InvoiceID = &inv.ID
	case net.LessThan(decimal.Zero):
		txn, err := s.createCredit(ctx, params, invCurrency, net.Neg())
		if err != nil {
			return nil, err
		}
		result.TransactionID = &txn.ID
	default:
		s.Logger.Debugw("service change netted to zero, nothing billed",
			"service_id", params.NewService.ID)
	}

	if params.Coupon != nil && (discount.GreaterThan(decimal.Zero) || creditOffset.GreaterThan(decimal.Zero)) {
		if err := s.CouponRepo.IncrementUsage(ctx, params.Coupon.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *serviceChangeService) validateChange(params ChangeParams) error {
	if params.OldService == nil || params.NewService == nil {
		return ierr.NewError("service change requires old and new service state").
			Mark(ierr.ErrValidation)
	}
	if params.OldPricing == nil || params.NewPricing == nil {
		return ierr.NewError("service change requires old and new pricing").
			Mark(ierr.ErrValidation)
	}
	if err := params.OldService.Validate(); err != nil {
		return err
	}
	if err := params.NewService.Validate(); err != nil {
		return err
	}
	if params.OldPricing.IsRecurring() != params.NewPricing.IsRecurring() {
		return ierr.NewError("incompatible pricing periods").
			WithHint("A service cannot move between recurring and onetime pricing mid-term").
			WithReportableDetails(map[string]any{
				"old_period": params.OldPricing.Period,
				"new_period": params.NewPricing.Period,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// collectDeltas produces the signed proration deltas of the change: the base
// package repricing plus one delta per option mutation, all expressed in the
// invoice currency over the span [now, renewDate).
func (s *serviceChangeService) collectDeltas(
	ctx context.Context,
	calc *proration.Calculator,
	params ChangeParams,
	renewDate time.Time,
	invCurrency string,
) ([]chargeLine, error) {
	var deltas []chargeLine

	// renewal-date-only changes reprice the shifted span instead of the package
	if s.isRenewalDateOnlyChange(params) {
		delta, err := s.renewalShiftDelta(calc, params, invCurrency)
		if err != nil {
			return nil, err
		}
		return append(deltas, delta), nil
	}

	oldFull := params.OldService.EffectivePrice(params.OldPricing).Mul(params.OldService.Quantity)
	oldCurrency := params.OldService.EffectiveCurrency(params.OldPricing)
	oldFull, err := s.inCurrency(ctx, oldFull, oldCurrency, invCurrency)
	if err != nil {
		return nil, err
	}
	newFull := params.NewService.EffectivePrice(params.NewPricing).Mul(params.NewService.Quantity)

	oldProrated, err := calc.ProratePriceBetween(oldFull, params.Now, renewDate, params.OldPricing.Term, params.OldPricing.Period)
	if err != nil {
		return nil, err
	}
	newProrated, err := calc.ProratePriceBetween(newFull, params.Now, renewDate, params.NewPricing.Term, params.NewPricing.Period)
	if err != nil {
		return nil, err
	}
	base := newProrated.Sub(oldProrated)
	if !base.IsZero() {
		deltas = append(deltas, chargeLine{
			description: s.baseChangeDescription(params),
			amount:      base,
		})
	}

	for _, change := range params.OptionChanges {
		delta, err := s.optionDelta(calc, change, params.Now, renewDate)
		if err != nil {
			return nil, err
		}
		if !delta.amount.IsZero() {
			deltas = append(deltas, delta)
		}
	}
	return deltas, nil
}

// isRenewalDateOnlyChange reports whether the only difference between the two
// states is the renew date itself.
func (s *serviceChangeService) isRenewalDateOnlyChange(params ChangeParams) bool {
	if params.OldService.PricingID != params.NewService.PricingID {
		return false
	}
	if params.OldService.PackageID != params.NewService.PackageID {
		return false
	}
	if !params.OldService.Quantity.Equal(params.NewService.Quantity) {
		return false
	}
	if len(params.OptionChanges) > 0 {
		return false
	}
	oldRenew := params.OldService.DateRenews
	newRenew := params.NewService.DateRenews
	return oldRenew != nil && newRenew != nil && !oldRenew.Equal(*newRenew)
}

// renewalShiftDelta prices the span the renew date moved by: pushing the date
// out bills the extension, pulling it in credits the unused span.
func (s *serviceChangeService) renewalShiftDelta(calc *proration.Calculator, params ChangeParams, invCurrency string) (chargeLine, error) {
	oldRenew := *params.OldService.DateRenews
	newRenew := *params.NewService.DateRenews

	full := params.NewService.EffectivePrice(params.NewPricing).Mul(params.NewService.Quantity)
	from, to := oldRenew, newRenew
	sign := decimal.NewFromInt(1)
	if newRenew.Before(oldRenew) {
		from, to = newRenew, oldRenew
		sign = decimal.NewFromInt(-1)
	}
	span, err := calc.ProratePriceBetween(full, from, to, params.NewPricing.Term, params.NewPricing.Period)
	if err != nil {
		return chargeLine{}, err
	}
	return chargeLine{
		description: "Renewal date adjustment",
		amount:      span.Mul(sign),
	}, nil
}

func (s *serviceChangeService) baseChangeDescription(params ChangeParams) string {
	if params.NewPackage != nil && params.OldPackage != nil && params.OldPackage.ID != params.NewPackage.ID {
		return fmt.Sprintf("Change from %s to %s (prorated)", params.OldPackage.Name, params.NewPackage.Name)
	}
	if params.NewPackage != nil {
		return fmt.Sprintf("%s (prorated change)", params.NewPackage.Name)
	}
	return "Service change (prorated)"
}

// optionDelta prices one option mutation over the remaining span, respecting
// the option's own term and period.
func (s *serviceChangeService) optionDelta(calc *proration.Calculator, change OptionChange, now, renewDate time.Time) (chargeLine, error) {
	prorate := func(opt *pricing.PackageOption) (decimal.Decimal, error) {
		if opt == nil {
			return decimal.Zero, nil
		}
		if err := opt.Validate(); err != nil {
			return decimal.Zero, err
		}
		full := opt.Price.Mul(opt.Quantity)
		if opt.Period == types.BillingPeriodOnetime || full.IsZero() {
			return full, nil
		}
		return calc.ProratePriceBetween(full, now, renewDate, opt.Term, opt.Period)
	}

	switch change.Type {
	case OptionChangeAdd:
		amount, err := prorate(change.New)
		if err != nil {
			return chargeLine{}, err
		}
		return chargeLine{description: fmt.Sprintf("%s (prorated)", change.New.Name), amount: amount}, nil
	case OptionChangeDelete:
		amount, err := prorate(change.Old)
		if err != nil {
			return chargeLine{}, err
		}
		return chargeLine{description: fmt.Sprintf("%s removed (prorated)", change.Old.Name), amount: amount.Neg()}, nil
	case OptionChangeEdit:
		newAmount, err := prorate(change.New)
		if err != nil {
			return chargeLine{}, err
		}
		oldAmount, err := prorate(change.Old)
		if err != nil {
			return chargeLine{}, err
		}
		return chargeLine{description: fmt.Sprintf("%s changed (prorated)", change.New.Name), amount: newAmount.Sub(oldAmount)}, nil
	default:
		return chargeLine{}, ierr.NewError("invalid option change type").
			WithHintf("got %q", change.Type).
			Mark(ierr.ErrValidation)
	}
}

// changeCouponDiscount applies the old service's coupon to the change when it
// still qualifies: the coupon must be recurring, redeemable, bound to the old
// service and bound to the new package. It discounts the positive side and
// symmetrically shrinks the credit pool so a downgrade does not refund value
// the coupon already discounted.
func (s *serviceChangeService) changeCouponDiscount(
	ctx context.Context,
	params ChangeParams,
	invCurrency string,
	positiveSubtotal, creditPool decimal.Decimal,
) (discount, creditOffset decimal.Decimal, err error) {
	cpn := params.Coupon
	if cpn == nil || !cpn.Recurring || !cpn.IsRedeemable(params.Now) {
		return decimal.Zero, decimal.Zero, nil
	}
	if params.OldService.CouponID == nil || *params.OldService.CouponID != cpn.ID {
		return decimal.Zero, decimal.Zero, nil
	}
	if !cpn.AppliesToPackage(params.NewService.PackageID) {
		return decimal.Zero, decimal.Zero, nil
	}

	def, err := resolveCouponAmount(ctx, s.Converter, cpn, invCurrency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return def.DiscountOn(positiveSubtotal), def.DiscountOn(creditPool), nil
}

// inCurrency converts amount into the target currency through the exchange
// rate port. A missing rate fails the whole change; charging an unconverted
// amount is never acceptable.
func (s *serviceChangeService) inCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if s.Converter == nil {
		return decimal.Zero, ierr.NewError("currency conversion unavailable").
			WithHintf("cannot convert %s to %s without an exchange rate source", from, to).
			Mark(ierr.ErrDependency)
	}
	converted, err := s.Converter.Convert(ctx, amount, from, to)
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("failed to convert service price from %s to %s", from, to).
			Mark(ierr.ErrDependency)
	}
	return converted, nil
}

// createChangeInvoice builds the upgrade invoice: one line per positive delta,
// plus negative adjustment lines for the credit pool and coupon discount so
// the invoice total equals the net amount.
func (s *serviceChangeService) createChangeInvoice(
	ctx context.Context,
	params ChangeParams,
	invCurrency string,
	positive []chargeLine,
	discount, creditPool decimal.Decimal,
) (*invoice.Invoice, error) {
	taxable := params.Billing.EnableTax && !params.Billing.TaxExempt &&
		params.NewPackage != nil && params.NewPackage.Taxable

	lines := make([]*invoice.LineItem, 0, len(positive)+2)
	for _, p := range positive {
		lines = append(lines, &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			ServiceID:   &params.NewService.ID,
			PackageID:   params.NewService.PackageID,
			Description: p.description,
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  p.amount,
			Currency:    invCurrency,
			Taxable:     taxable,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		})
	}
	if creditPool.GreaterThan(decimal.Zero) {
		lines = append(lines, &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			ServiceID:   &params.NewService.ID,
			Description: "Prorated credit",
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  creditPool.Neg(),
			Currency:    invCurrency,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		})
	}
	if discount.GreaterThan(decimal.Zero) {
		lines = append(lines, &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			ServiceID:   &params.NewService.ID,
			Description: fmt.Sprintf("Coupon %s", params.Coupon.Code),
			Quantity:    decimal.NewFromInt(1),
			UnitAmount:  discount.Neg(),
			Currency:    invCurrency,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		})
	}

	rules, err := s.TaxRuleRepo.ListForClient(ctx, params.NewService.ClientID)
	if err != nil {
		return nil, err
	}
	totals, err := s.totals.Calculate(ctx, TotalsParams{
		Billing:  params.Billing,
		Currency: invCurrency,
		Now:      params.Now,
		Items:    lines,
		TaxRules: rules,
	})
	if err != nil {
		return nil, err
	}

	dueDays := 0
	if s.Config != nil {
		dueDays = s.Config.Billing.InvoiceDueDays
	}
	inv := &invoice.Invoice{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		Number:     types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		ClientID:   params.NewService.ClientID,
		DateBilled: params.Now.UTC(),
		DateDue:    params.Now.UTC().AddDate(0, 0, dueDays),
		Currency:   invCurrency,
		Status:     types.InvoiceStatusActive,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		TaxTotal:   totals.TaxTotal,
		Total:      totals.Total,
		Lines:      lines,
		Metadata: map[string]string{
			"service_id": params.NewService.ID,
			"reason":     "service_change",
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.InvoiceRepo.CreateWithLineItems(ctx, inv); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to create change invoice for service %s", params.NewService.ID).
			Mark(ierr.ErrDatabase)
	}

	s.Logger.Infow("billed service change",
		"service_id", params.NewService.ID,
		"invoice_id", inv.ID,
		"total", totals.TotalFormatted)
	return inv, nil
}

// createCredit records the downgrade remainder as an in-house credit on the
// client account.
func (s *serviceChangeService) createCredit(ctx context.Context, params ChangeParams, invCurrency string, amount decimal.Decimal) (*transaction.Transaction, error) {
	txn := &transaction.Transaction{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
		ClientID:  params.NewService.ClientID,
		Type:      transaction.TransactionTypeCredit,
		Amount:    amount,
		Currency:  invCurrency,
		DateAdded: params.Now.UTC(),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	if err := s.TransactionRepo.Create(ctx, txn); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to credit client %s for service downgrade", params.NewService.ClientID).
			Mark(ierr.ErrDatabase)
	}

	s.Logger.Infow("credited service downgrade",
		"service_id", params.NewService.ID,
		"transaction_id", txn.ID,
		"amount", types.FormatAmountToString(amount, invCurrency))
	return txn, nil
}
