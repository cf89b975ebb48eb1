package invoice

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is a billed artifact produced by the calculation engine.
type Invoice struct {
	ID       string `json:"id"`
	Number   string `json:"number,omitempty"`
	ClientID string `json:"client_id"`

	DateBilled time.Time  `json:"date_billed"`
	DateDue    time.Time  `json:"date_due"`
	DateClosed *time.Time `json:"date_closed,omitempty"`

	Currency string              `json:"currency"`
	Status   types.InvoiceStatus `json:"status"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	TaxTotal decimal.Decimal `json:"tax_total"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`

	Lines []*LineItem `json:"lines"`

	// DeliveryMethods are the channels the invoice should be sent through
	DeliveryMethods []string          `json:"delivery_methods,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	types.BaseModel
}

// LineItem is one priced line of an invoice. Calculators never mutate line
// items handed to them.
type LineItem struct {
	ID          string  `json:"id"`
	InvoiceID   string  `json:"invoice_id,omitempty"`
	ServiceID   *string `json:"service_id,omitempty"`
	PackageID   string  `json:"package_id,omitempty"`
	Description string  `json:"description"`

	Quantity   decimal.Decimal `json:"quantity"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
	Currency   string          `json:"currency"`

	Taxable bool `json:"taxable"`
	// IsOption marks config option lines; coupons treat them separately
	IsOption bool `json:"is_option,omitempty"`

	SetupFee  decimal.Decimal `json:"setup_fee"`
	CancelFee decimal.Decimal `json:"cancel_fee"`
	types.BaseModel
}

// Amount is quantity times unit amount, unrounded.
func (li *LineItem) Amount() decimal.Decimal {
	return li.Quantity.Mul(li.UnitAmount)
}

func (li *LineItem) Validate() error {
	if li.Quantity.IsNegative() {
		return ierr.NewError("line item quantity cannot be negative").
			WithReportableDetails(map[string]any{
				"description": li.Description,
				"quantity":    li.Quantity,
			}).
			Mark(ierr.ErrValidation)
	}
	if li.Currency != "" {
		if err := types.ValidateCurrencyCode(li.Currency); err != nil {
			return err
		}
	}
	return nil
}

func (inv *Invoice) Validate() error {
	if inv.ClientID == "" {
		return ierr.NewError("invoice client is required").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateCurrencyCode(inv.Currency); err != nil {
		return err
	}
	if err := inv.Status.Validate(); err != nil {
		return err
	}
	if inv.DateDue.Before(inv.DateBilled) {
		return ierr.NewError("invoice due date cannot precede billed date").
			WithReportableDetails(map[string]any{
				"date_billed": inv.DateBilled,
				"date_due":    inv.DateDue,
			}).
			Mark(ierr.ErrValidation)
	}
	for _, line := range inv.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Closed reports whether the invoice is fully settled.
func (inv *Invoice) Closed() bool {
	return inv.DateClosed != nil
}

// RecalculateClose re-evaluates the closed state from paid vs total. It is
// idempotent and must be called whenever totals or payments change: an invoice
// closes when paid covers the total and the status is collectable, and reopens
// when a total change pushes it back under.
func (inv *Invoice) RecalculateClose(now time.Time) {
	shouldClose := inv.Status.Collectable() && inv.Paid.GreaterThanOrEqual(inv.Total)
	switch {
	case shouldClose && inv.DateClosed == nil:
		inv.DateClosed = types.ToNillableTime(now.UTC())
	case !shouldClose && inv.DateClosed != nil:
		inv.DateClosed = nil
	}
}
