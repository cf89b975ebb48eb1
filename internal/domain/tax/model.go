package tax

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// TaxRule is one level of a company's tax configuration. Rules are applied in
// ascending level order; level 1 always applies to the raw subtotal.
type TaxRule struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Code       string            `json:"code,omitempty"`
	Level      int               `json:"level"`
	Percentage decimal.Decimal   `json:"percentage"`
	Type       types.TaxRuleType `json:"type"`
	// Cascades makes the rule tax the subtotal plus the immediately preceding
	// level's tax amount instead of the subtotal alone.
	Cascades bool              `json:"cascades"`
	Metadata map[string]string `json:"metadata,omitempty"`
	types.BaseModel
}

func (r *TaxRule) Validate() error {
	if r.Level < 1 {
		return ierr.NewError("invalid tax rule level").
			WithHintf("level must be >= 1, got %d", r.Level).
			Mark(ierr.ErrValidation)
	}
	if r.Percentage.IsNegative() {
		return ierr.NewError("invalid tax rule percentage").
			WithHint("Tax percentage cannot be negative").
			WithReportableDetails(map[string]any{
				"tax_rule_id": r.ID,
				"percentage":  r.Percentage,
			}).
			Mark(ierr.ErrValidation)
	}
	return r.Type.Validate()
}
