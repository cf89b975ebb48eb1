package tax

import (
	"sort"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// taxRoundPlaces is the precision tax amounts are rounded to at each level.
// Rounding happens per level, not deferred, so that displayed tax lines foot
// exactly against the stored totals.
const taxRoundPlaces = 2

var oneHundred = decimal.NewFromInt(100)

// LevelAmount is the tax computed for a single rule level.
type LevelAmount struct {
	Level  int               `json:"level"`
	Name   string            `json:"name"`
	Rate   decimal.Decimal   `json:"rate"`
	Type   types.TaxRuleType `json:"type"`
	Amount decimal.Decimal   `json:"amount"`
}

// CascadeResult holds the per-level tax amounts for one line subtotal.
type CascadeResult struct {
	Levels []LevelAmount `json:"levels"`
	// TaxSubtotal is the sum of inclusive-type amounts only
	TaxSubtotal decimal.Decimal `json:"tax_subtotal"`
	// TaxTotal is the sum of all amounts, inclusive and exclusive
	TaxTotal decimal.Decimal `json:"tax_total"`
	// LineTotal is subtotal + TaxSubtotal
	LineTotal decimal.Decimal `json:"line_total"`
	// LineTotalWithTax is subtotal + TaxTotal
	LineTotalWithTax decimal.Decimal `json:"line_total_with_tax"`
}

// CalculateCascade computes per-level tax amounts for one line subtotal.
// Rules must arrive level-deduplicated; duplicate levels are a caller contract
// violation and rejected rather than silently summed. For a cascading rule the
// taxable base is the subtotal plus the immediately preceding level's amount.
func CalculateCascade(subtotal decimal.Decimal, rules []*TaxRule) (*CascadeResult, error) {
	ordered := make([]*TaxRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Level < ordered[j].Level
	})

	result := &CascadeResult{
		Levels:      make([]LevelAmount, 0, len(ordered)),
		TaxSubtotal: decimal.Zero,
		TaxTotal:    decimal.Zero,
	}

	prevAmount := decimal.Zero
	prevLevel := 0
	for i, rule := range ordered {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if rule.Level == prevLevel {
			return nil, ierr.NewError("duplicate tax rule level").
				WithHintf("more than one tax rule at level %d", rule.Level).
				WithReportableDetails(map[string]any{
					"level":       rule.Level,
					"tax_rule_id": rule.ID,
				}).
				Mark(ierr.ErrValidation)
		}

		base := subtotal
		if rule.Cascades && i > 0 {
			base = subtotal.Add(prevAmount)
		}
		amount := base.Mul(rule.Percentage).Div(oneHundred).Round(taxRoundPlaces)

		result.Levels = append(result.Levels, LevelAmount{
			Level:  rule.Level,
			Name:   rule.Name,
			Rate:   rule.Percentage,
			Type:   rule.Type,
			Amount: amount,
		})
		if rule.Type == types.TaxRuleTypeInclusive {
			result.TaxSubtotal = result.TaxSubtotal.Add(amount)
		}
		result.TaxTotal = result.TaxTotal.Add(amount)

		prevAmount = amount
		prevLevel = rule.Level
	}

	result.LineTotal = subtotal.Add(result.TaxSubtotal)
	result.LineTotalWithTax = subtotal.Add(result.TaxTotal)
	return result, nil
}
