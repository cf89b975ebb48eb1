package service

import (
	"context"
	"time"

	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/recurringinvoice"
	"github.com/omnibill/omnibill/internal/domain/tax"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/samber/lo"
)

// RecurringInvoiceService materializes concrete invoices from recurring
// invoice definitions. A definition that has fallen several cycles behind is
// caught up one invoice per missed cycle; the renew date only advances after
// the cycle's invoice is durably created, so a crash mid-run never skips or
// double-bills a cycle.
type RecurringInvoiceService interface {
	// ProcessDue creates every invoice the definition owes as of today
	// and returns how many were created.
	ProcessDue(ctx context.Context, billing types.BillingContext, definitionID string, today time.Time) (int, error)
	// ProcessAllDue runs ProcessDue over every definition due as of
	// today. Per-definition failures are logged and skipped so one broken
	// definition cannot starve the rest of the run.
	ProcessAllDue(ctx context.Context, billing types.BillingContext, today time.Time) (int, error)
}

type recurringInvoiceService struct {
	ServiceParams
	totals TotalsService
}

func NewRecurringInvoiceService(params ServiceParams) RecurringInvoiceService {
	return &recurringInvoiceService{
		ServiceParams: params,
		totals:        NewTotalsService(params),
	}
}

func (s *recurringInvoiceService) ProcessDue(ctx context.Context, billing types.BillingContext, definitionID string, today time.Time) (int, error) {
	def, err := s.RecurringInvoiceRepo.Get(ctx, definitionID)
	if err != nil {
		return 0, err
	}
	if err := def.Validate(); err != nil {
		return 0, err
	}

	rules, err := s.TaxRuleRepo.ListForClient(ctx, def.ClientID)
	if err != nil {
		return 0, err
	}

	count, err := s.RecurringInvoiceRepo.CountCreated(ctx, def.ID)
	if err != nil {
		return 0, err
	}

	created := 0
	for {
		if !def.Renewable(count) {
			s.Logger.Debugw("recurring invoice definition reached its duration cap",
				"recurring_invoice_id", def.ID,
				"created", count)
			return created, nil
		}
		if def.DateRenews.After(today) {
			return created, nil
		}

		periodStart := def.DateRenews
		periodEnd, err := types.NextBillingDate(periodStart, def.Term, def.Period)
		if err != nil {
			return created, err
		}

		inv, err := s.materialize(ctx, billing, def, rules, periodStart, periodEnd, today)
		if err != nil {
			// halt without advancing; the failed cycle is retried next run
			return created, err
		}

		if err := s.RecurringInvoiceRepo.RecordCycle(ctx, def.ID, inv.ID, periodEnd, periodStart); err != nil {
			return created, err
		}
		def.DateRenews = periodEnd
		def.DateLastRenewed = lo.ToPtr(periodStart)
		count++
		created++

		s.Logger.Infow("created recurring invoice",
			"recurring_invoice_id", def.ID,
			"invoice_id", inv.ID,
			"period_start", periodStart,
			"period_end", periodEnd)
	}
}

func (s *recurringInvoiceService) ProcessAllDue(ctx context.Context, billing types.BillingContext, today time.Time) (int, error) {
	defs, err := s.RecurringInvoiceRepo.ListDue(ctx, today)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, def := range defs {
		n, err := s.ProcessDue(ctx, billing, def.ID, today)
		total += n
		if err != nil {
			s.Logger.Errorw("failed to process recurring invoice definition",
				"recurring_invoice_id", def.ID,
				"error", err)
		}
	}
	return total, nil
}

// materialize builds and persists one invoice for the cycle [periodStart,
// periodEnd) from the definition's line templates.
func (s *recurringInvoiceService) materialize(
	ctx context.Context,
	billing types.BillingContext,
	def *recurringinvoice.Definition,
	rules []*tax.TaxRule,
	periodStart, periodEnd, today time.Time,
) (*invoice.Invoice, error) {
	lines := lo.Map(def.Lines, func(line recurringinvoice.DefinitionLine, _ int) *invoice.LineItem {
		return &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			Currency:    def.Currency,
			Taxable:     line.Taxable,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		}
	})

	totals, err := s.totals.Calculate(ctx, TotalsParams{
		Billing:  billing,
		Currency: def.Currency,
		Now:      today,
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
		ClientID:   def.ClientID,
		DateBilled: today.UTC(),
		DateDue:    today.UTC().AddDate(0, 0, dueDays),
		Currency:   def.Currency,
		Status:     types.InvoiceStatusActive,
		Subtotal:   totals.Subtotal,
		Discount:   totals.Discount,
		TaxTotal:   totals.TaxTotal,
		Total:      totals.Total,
		Lines:      lines,

		DeliveryMethods: def.DeliveryMethods,
		Metadata: map[string]string{
			"recurring_invoice_id": def.ID,
			"period_start":         periodStart.UTC().Format(time.RFC3339),
			"period_end":           periodEnd.UTC().Format(time.RFC3339),
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.InvoiceRepo.CreateWithLineItems(ctx, inv); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to create invoice for recurring definition %s", def.ID).
			Mark(ierr.ErrDatabase)
	}
	return inv, nil
}
