package recurringinvoice

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// Definition is a template that materializes a concrete invoice every
// term*period, starting at DateRenews.
type Definition struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`

	Term   int                 `json:"term"`
	Period types.BillingPeriod `json:"period"`

	// Duration caps how many invoices the definition produces; nil = indefinite
	Duration *int `json:"duration,omitempty"`

	DateRenews      time.Time  `json:"date_renews"`
	DateLastRenewed *time.Time `json:"date_last_renewed,omitempty"`

	Currency        string            `json:"currency"`
	Lines           []DefinitionLine  `json:"lines"`
	DeliveryMethods []string          `json:"delivery_methods,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	types.BaseModel
}

// DefinitionLine is a template for one invoice line.
type DefinitionLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Taxable     bool            `json:"taxable"`
}

func (d *Definition) Validate() error {
	if d.ClientID == "" {
		return ierr.NewError("recurring invoice client is required").
			Mark(ierr.ErrValidation)
	}
	if err := d.Period.Validate(); err != nil {
		return err
	}
	if !d.Period.IsRecurring() {
		return ierr.NewError("recurring invoice period must renew").
			WithHint("Onetime is not a valid recurring invoice period").
			Mark(ierr.ErrValidation)
	}
	if d.Term <= 0 {
		return ierr.NewError("recurring invoice term must be positive").
			WithHintf("got term %d", d.Term).
			Mark(ierr.ErrValidation)
	}
	if d.Duration != nil && *d.Duration < 0 {
		return ierr.NewError("recurring invoice duration cannot be negative").
			Mark(ierr.ErrValidation)
	}
	if err := types.ValidateCurrencyCode(d.Currency); err != nil {
		return err
	}
	if d.DateRenews.IsZero() {
		return ierr.NewError("recurring invoice renew date is required").
			Mark(ierr.ErrValidation)
	}
	for _, line := range d.Lines {
		if line.Quantity.IsNegative() {
			return ierr.NewError("recurring invoice line quantity cannot be negative").
				WithReportableDetails(map[string]any{
					"description": line.Description,
				}).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Renewable reports whether another invoice may be created given how many have
// already been created from this definition.
func (d *Definition) Renewable(created int) bool {
	return d.Duration == nil || created < *d.Duration
}
