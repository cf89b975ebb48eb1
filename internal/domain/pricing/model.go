package pricing

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// maxTerm is the largest supported term multiplier.
const maxTerm = 65535

// PackagePricing is one term/period price point of a package.
type PackagePricing struct {
	ID        string              `json:"id"`
	PackageID string              `json:"package_id"`
	Term      int                 `json:"term"`
	Period    types.BillingPeriod `json:"period"`
	Price     decimal.Decimal     `json:"price"`
	SetupFee  decimal.Decimal     `json:"setup_fee"`
	CancelFee decimal.Decimal     `json:"cancel_fee"`
	Currency  string              `json:"currency"`
	types.BaseModel
}

func (p *PackagePricing) Validate() error {
	if err := p.Period.Validate(); err != nil {
		return err
	}
	if err := types.ValidateCurrencyCode(p.Currency); err != nil {
		return err
	}
	if p.Term < 0 || p.Term > maxTerm {
		return ierr.NewError("invalid pricing term").
			WithHintf("term must be between 0 and %d, got %d", maxTerm, p.Term).
			Mark(ierr.ErrValidation)
	}
	// A zero term only makes sense for one-off charges
	if p.Term == 0 && p.Period != types.BillingPeriodOnetime {
		return ierr.NewError("invalid pricing term").
			WithHint("Term 0 is only valid for onetime pricing").
			WithReportableDetails(map[string]any{
				"pricing_id": p.ID,
				"period":     p.Period,
			}).
			Mark(ierr.ErrValidation)
	}
	if p.Price.IsNegative() || p.SetupFee.IsNegative() || p.CancelFee.IsNegative() {
		return ierr.NewError("pricing amounts cannot be negative").
			WithReportableDetails(map[string]any{
				"pricing_id": p.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsRecurring reports whether the pricing renews.
func (p *PackagePricing) IsRecurring() bool {
	return p.Period.IsRecurring()
}

// Package groups pricings and carries provisioning metadata.
type Package struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GroupID string `json:"group_id,omitempty"`
	Taxable bool   `json:"taxable"`
	// Meta carries module-specific key/value configuration
	Meta map[string]interface{} `json:"meta,omitempty"`
	types.BaseModel
}

// ProvisioningMeta is the typed view of a package's meta bag, handed to the
// provisioning module when a service on the package is created or changed.
type ProvisioningMeta struct {
	Module   string `json:"module,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	DiskGB   int    `json:"disk_gb,omitempty"`
	Managed  bool   `json:"managed,omitempty"`
}

// ProvisioningMeta decodes the package's meta bag into its typed form.
// A package without meta decodes to the zero value.
func (p *Package) ProvisioningMeta() (ProvisioningMeta, error) {
	return types.ToStruct[ProvisioningMeta](p.Meta)
}

// PackageOption is a configurable add-on of a package with its own pricing term.
type PackageOption struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Quantity decimal.Decimal     `json:"quantity"`
	Price    decimal.Decimal     `json:"price"`
	SetupFee decimal.Decimal     `json:"setup_fee"`
	Term     int                 `json:"term"`
	Period   types.BillingPeriod `json:"period"`
}

func (o *PackageOption) Validate() error {
	if err := o.Period.Validate(); err != nil {
		return err
	}
	if o.Quantity.IsNegative() {
		return ierr.NewError("option quantity cannot be negative").
			WithReportableDetails(map[string]any{
				"option_id": o.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
