package service

import (
	"testing"
	"time"

	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/recurringinvoice"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/testutil"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDefinition(dateRenews time.Time) *recurringinvoice.Definition {
	return &recurringinvoice.Definition{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_INVOICE),
		ClientID:   "client_1",
		Term:       1,
		Period:     types.BillingPeriodMonth,
		DateRenews: dateRenews,
		Currency:   "usd",
		Lines: []recurringinvoice.DefinitionLine{
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitAmount: decimal.NewFromInt(100)},
		},
	}
}

func TestRecurring_CatchUpCreatesOneInvoicePerMissedCycle(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	invoices := params.InvoiceRepo.(*testutil.InMemoryInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	def := newTestDefinition(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.InMemoryStore.Create(ctx, def.ID, def))

	// three cycles behind as of Mar 20
	today := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	created, err := svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	stored, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), stored.DateRenews)
	require.NotNil(t, stored.DateLastRenewed)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *stored.DateLastRenewed)

	all, err := invoices.ListByClient(ctx, "client_1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, inv := range all {
		assert.Equal(t, "usd", inv.Currency)
		assert.True(t, inv.Total.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, def.ID, inv.Metadata["recurring_invoice_id"])
		require.Len(t, inv.Lines, 1)
		assert.Equal(t, "Hosting", inv.Lines[0].Description)
	}

	// a second run owes nothing
	created, err = svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestRecurring_NotYetDue(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	def := newTestDefinition(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.InMemoryStore.Create(ctx, def.ID, def))

	created, err := svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestRecurring_DurationCapsCreation(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	def := newTestDefinition(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	def.Duration = lo.ToPtr(2)
	require.NoError(t, store.InMemoryStore.Create(ctx, def.ID, def))

	// five cycles behind but capped at two invoices total
	today := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	created, err := svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestRecurring_FailureHaltsWithoutAdvancing(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	invoices := params.InvoiceRepo.(*testutil.InMemoryInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	def := newTestDefinition(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.InMemoryStore.Create(ctx, def.ID, def))

	calls := 0
	invoices.CreateHook = func(_ *invoice.Invoice) error {
		calls++
		if calls >= 2 {
			return ierr.NewError("storage unavailable").Mark(ierr.ErrDatabase)
		}
		return nil
	}

	today := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	created, err := svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.Error(t, err)
	assert.Equal(t, 1, created)

	// the failed cycle did not advance the renew date
	stored, err := store.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC), stored.DateRenews)

	// once storage recovers the remaining cycles are caught up exactly once
	invoices.CreateHook = nil
	created, err = svc.ProcessDue(ctx, types.BillingContext{CompanyID: "company_test"}, def.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	all, err := invoices.ListByClient(ctx, "client_1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecurring_AppliesClientTaxRules(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	taxes := params.TaxRuleRepo.(*testutil.InMemoryTaxRuleStore)
	invoices := params.InvoiceRepo.(*testutil.InMemoryInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	require.NoError(t, taxes.Create(ctx, taxRule(1, "10", types.TaxRuleTypeExclusive)))

	def := newTestDefinition(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	def.Lines[0].Taxable = true
	require.NoError(t, store.InMemoryStore.Create(ctx, def.ID, def))

	created, err := svc.ProcessDue(ctx, taxedBilling(), def.ID, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, created)

	all, err := invoices.ListByClient(ctx, "client_1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].TaxTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, all[0].Total.Equal(decimal.NewFromInt(100)))
}

func TestRecurring_ProcessAllDueSkipsBrokenDefinitions(t *testing.T) {
	params := newTestServiceParams()
	store := params.RecurringInvoiceRepo.(*testutil.InMemoryRecurringInvoiceStore)
	svc := NewRecurringInvoiceService(params)

	ctx := testutil.SetupContext()
	good := newTestDefinition(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	broken := newTestDefinition(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	broken.Currency = "zz"
	require.NoError(t, store.InMemoryStore.Create(ctx, good.ID, good))
	require.NoError(t, store.InMemoryStore.Create(ctx, broken.ID, broken))

	total, err := svc.ProcessAllDue(ctx, types.BillingContext{CompanyID: "company_test"}, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
