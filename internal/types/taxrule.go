package types

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/samber/lo"
)

// TaxRuleType controls whether a tax amount is folded into the invoice total
// (inclusive) or listed on top of it (exclusive).
type TaxRuleType string

const (
	TaxRuleTypeInclusive TaxRuleType = "inclusive"
	TaxRuleTypeExclusive TaxRuleType = "exclusive"
)

var TaxRuleTypeValues = []TaxRuleType{
	TaxRuleTypeInclusive,
	TaxRuleTypeExclusive,
}

func (t TaxRuleType) String() string {
	return string(t)
}

func (t TaxRuleType) Validate() error {
	if !lo.Contains(TaxRuleTypeValues, t) {
		return ierr.NewError("invalid tax rule type").
			WithHint("Tax rule type must be either inclusive or exclusive").
			WithReportableDetails(map[string]any{
				"allowed_values": TaxRuleTypeValues,
				"provided_value": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
