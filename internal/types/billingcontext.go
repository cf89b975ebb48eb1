package types

import (
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
)

// BillingContext carries the per-company billing settings every calculation
// needs. It is threaded explicitly through calls instead of being looked up
// from ambient configuration.
type BillingContext struct {
	CompanyID string

	// Timezone is the IANA name of the company's business timezone. Anchor day
	// checks and day counting happen in this zone.
	Timezone string

	// Tax settings
	TaxExempt       bool
	EnableTax       bool
	SetupFeeTaxable bool
	CascadeTax      bool

	// ProRataDay is the day-of-month recurring cycles align to (1..28, 0 = unset).
	ProRataDay int
	// CutoffDay governs whether a stub period is billed after the first prorated
	// partial period (0 = unset).
	CutoffDay int
}

// Location resolves the business timezone, defaulting to UTC when unset.
func (b BillingContext) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to load timezone %q", b.Timezone).
			Mark(ierr.ErrValidation)
	}
	return loc, nil
}

func (b BillingContext) Validate() error {
	if b.ProRataDay < 0 || b.ProRataDay > 28 {
		return ierr.NewError("invalid pro rata day").
			WithHint("Pro rata day must be between 1 and 28").
			WithReportableDetails(map[string]any{
				"provided_value": b.ProRataDay,
			}).
			Mark(ierr.ErrValidation)
	}
	if b.CutoffDay < 0 || b.CutoffDay > 31 {
		return ierr.NewError("invalid cutoff day").
			WithHint("Cutoff day must be between 1 and 31").
			Mark(ierr.ErrValidation)
	}
	if _, err := b.Location(); err != nil {
		return err
	}
	return nil
}
