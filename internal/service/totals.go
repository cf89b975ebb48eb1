package service

import (
	"context"
	"sort"
	"time"

	"github.com/omnibill/omnibill/internal/domain/coupon"
	"github.com/omnibill/omnibill/internal/domain/currency"
	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/tax"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TotalsService aggregates line items into invoice totals: per-line tax
// cascades, setup and cancellation fees, and coupon discounts. Calculation is
// pure; persisting totals and recording coupon usage is the caller's job.
type TotalsService interface {
	Calculate(ctx context.Context, params TotalsParams) (*InvoiceTotals, error)
}

// FeeSelection picks which one-off fees the billing event includes. Renewal
// invoices bill neither; first invoices bill setup, cancellations bill cancel.
type FeeSelection struct {
	Setup  bool `json:"setup"`
	Cancel bool `json:"cancel"`
}

// TotalsParams is the input to one totals calculation.
type TotalsParams struct {
	Billing  types.BillingContext
	Currency string
	// Now is the evaluation instant for coupon redemption windows
	Now      time.Time
	Items    []*invoice.LineItem
	TaxRules []*tax.TaxRule
	Coupon   *coupon.Coupon
	Fees     FeeSelection
}

// TaxLevelTotal is the invoice-wide amount for one tax rule level, summed
// across all taxable lines.
type TaxLevelTotal struct {
	Level           int               `json:"level"`
	Name            string            `json:"name"`
	Rate            decimal.Decimal   `json:"rate"`
	Type            types.TaxRuleType `json:"type"`
	Amount          decimal.Decimal   `json:"amount"`
	AmountFormatted string            `json:"amount_formatted"`
}

// InvoiceTotals is the result of a totals calculation. Total carries only
// inclusive taxes; TotalWithTax carries inclusive and exclusive taxes both.
type InvoiceTotals struct {
	Currency string `json:"currency"`

	Subtotal   decimal.Decimal `json:"subtotal"`
	SetupFees  decimal.Decimal `json:"setup_fees"`
	CancelFees decimal.Decimal `json:"cancel_fees"`
	Discount   decimal.Decimal `json:"discount"`

	TaxSubtotal decimal.Decimal `json:"tax_subtotal"`
	TaxTotal    decimal.Decimal `json:"tax_total"`
	TaxLevels   []TaxLevelTotal `json:"tax_levels"`

	Total        decimal.Decimal `json:"total"`
	TotalWithTax decimal.Decimal `json:"total_with_tax"`

	SubtotalFormatted     string `json:"subtotal_formatted"`
	DiscountFormatted     string `json:"discount_formatted"`
	TotalFormatted        string `json:"total_formatted"`
	TotalWithTaxFormatted string `json:"total_with_tax_formatted"`
}

type totalsService struct {
	ServiceParams
}

func NewTotalsService(params ServiceParams) TotalsService {
	return &totalsService{ServiceParams: params}
}

func (s *totalsService) Calculate(ctx context.Context, params TotalsParams) (*InvoiceTotals, error) {
	if err := types.ValidateCurrencyCode(params.Currency); err != nil {
		return nil, err
	}

	rules, err := effectiveTaxRules(params.Billing, params.TaxRules)
	if err != nil {
		return nil, err
	}
	applyTax := params.Billing.EnableTax && !params.Billing.TaxExempt && len(rules) > 0

	totals := &InvoiceTotals{Currency: params.Currency}
	levelTotals := map[int]*TaxLevelTotal{}

	for _, item := range params.Items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		// zero-quantity option lines contribute nothing, not even fees
		if item.IsOption && item.Quantity.IsZero() {
			continue
		}
		if item.Currency != "" && item.Currency != params.Currency {
			return nil, ierr.NewError("line item currency mismatch").
				WithHintf("line %q is priced in %s but the invoice currency is %s", item.Description, item.Currency, params.Currency).
				Mark(ierr.ErrValidation)
		}

		amount := item.Amount()
		totals.Subtotal = totals.Subtotal.Add(amount)

		if params.Fees.Setup {
			totals.SetupFees = totals.SetupFees.Add(item.SetupFee)
		}
		if params.Fees.Cancel {
			// cancellation fees are never taxed
			totals.CancelFees = totals.CancelFees.Add(item.CancelFee)
		}

		if !applyTax || !item.Taxable {
			continue
		}
		if amount.GreaterThan(decimal.Zero) {
			cascade, err := tax.CalculateCascade(amount, rules)
			if err != nil {
				return nil, err
			}
			accumulateCascade(totals, levelTotals, cascade)
		}
		// a taxable setup fee gets its own cascade run; per-level rounding
		// then matches a separately billed fee
		if params.Fees.Setup && params.Billing.SetupFeeTaxable && item.SetupFee.GreaterThan(decimal.Zero) {
			cascade, err := tax.CalculateCascade(item.SetupFee, rules)
			if err != nil {
				return nil, err
			}
			accumulateCascade(totals, levelTotals, cascade)
		}
	}

	discount, err := s.couponDiscount(ctx, params)
	if err != nil {
		return nil, err
	}
	// a discount never exceeds the pre-tax subtotal
	totals.Discount = decimal.Min(totals.Subtotal, discount)

	fees := totals.SetupFees.Add(totals.CancelFees)
	totals.Total = totals.Subtotal.Add(fees).Sub(totals.Discount).Add(totals.TaxSubtotal)
	totals.TotalWithTax = totals.Subtotal.Add(fees).Sub(totals.Discount).Add(totals.TaxTotal)

	totals.Subtotal = types.RoundToCurrencyPrecision(totals.Subtotal, params.Currency)
	totals.Discount = types.RoundToCurrencyPrecision(totals.Discount, params.Currency)
	totals.Total = types.RoundToCurrencyPrecision(totals.Total, params.Currency)
	totals.TotalWithTax = types.RoundToCurrencyPrecision(totals.TotalWithTax, params.Currency)

	totals.TaxLevels = lo.Map(lo.Values(levelTotals), func(lt *TaxLevelTotal, _ int) TaxLevelTotal {
		lt.AmountFormatted = types.FormatAmountToString(lt.Amount, params.Currency)
		return *lt
	})
	sort.Slice(totals.TaxLevels, func(i, j int) bool {
		return totals.TaxLevels[i].Level < totals.TaxLevels[j].Level
	})

	totals.SubtotalFormatted = types.FormatAmountToString(totals.Subtotal, params.Currency)
	totals.DiscountFormatted = types.FormatAmountToString(totals.Discount, params.Currency)
	totals.TotalFormatted = types.FormatAmountToString(totals.Total, params.Currency)
	totals.TotalWithTaxFormatted = types.FormatAmountToString(totals.TotalWithTax, params.Currency)
	return totals, nil
}

// accumulateCascade folds one cascade run into the invoice-wide totals and
// per-level accumulators.
func accumulateCascade(totals *InvoiceTotals, levelTotals map[int]*TaxLevelTotal, cascade *tax.CascadeResult) {
	totals.TaxSubtotal = totals.TaxSubtotal.Add(cascade.TaxSubtotal)
	totals.TaxTotal = totals.TaxTotal.Add(cascade.TaxTotal)
	for _, level := range cascade.Levels {
		lt, ok := levelTotals[level.Level]
		if !ok {
			lt = &TaxLevelTotal{
				Level: level.Level,
				Name:  level.Name,
				Rate:  level.Rate,
				Type:  level.Type,
			}
			levelTotals[level.Level] = lt
		}
		lt.Amount = lt.Amount.Add(level.Amount)
	}
}

// effectiveTaxRules applies the company cascade setting uniformly across the
// rule set. Per-rule cascade flags are overridden so one company setting
// governs the whole cascade.
func effectiveTaxRules(billing types.BillingContext, rules []*tax.TaxRule) ([]*tax.TaxRule, error) {
	out := make([]*tax.TaxRule, 0, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		clone := *r
		clone.Cascades = billing.CascadeTax
		out = append(out, &clone)
	}
	return out, nil
}

// couponDiscount resolves the discount base per the coupon's scope and applies
// the currency's amount definition, converting through the exchange rate port
// when no definition matches the invoice currency.
func (s *totalsService) couponDiscount(ctx context.Context, params TotalsParams) (decimal.Decimal, error) {
	cpn := params.Coupon
	if cpn == nil || !cpn.IsRedeemable(params.Now) {
		return decimal.Zero, nil
	}

	base := decimal.Zero
	switch cpn.Scope {
	case types.CouponScopeExclusive:
		// only lines for bound packages contribute
		for _, item := range params.Items {
			if !cpn.AppliesToPackage(item.PackageID) {
				continue
			}
			if item.IsOption && !cpn.AppliesToOptions {
				continue
			}
			base = base.Add(item.Amount())
		}
	case types.CouponScopeInclusive:
		// every bound package must be present, or the coupon does not apply
		present := lo.Uniq(lo.FilterMap(params.Items, func(item *invoice.LineItem, _ int) (string, bool) {
			return item.PackageID, item.PackageID != ""
		}))
		if !cpn.MembershipSatisfied(present) {
			return decimal.Zero, nil
		}
		for _, item := range params.Items {
			if !cpn.AppliesToPackage(item.PackageID) {
				continue
			}
			if item.IsOption && !cpn.AppliesToOptions {
				continue
			}
			base = base.Add(item.Amount())
		}
	default:
		return decimal.Zero, ierr.NewError("invalid coupon scope").
			WithHintf("coupon %s has unknown scope %q", cpn.ID, cpn.Scope).
			Mark(ierr.ErrValidation)
	}
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	def, err := resolveCouponAmount(ctx, s.Converter, cpn, params.Currency)
	if err != nil {
		return decimal.Zero, err
	}
	return def.DiscountOn(base), nil
}

// resolveCouponAmount picks the coupon's amount definition for the invoice
// currency. When none matches, an amount-kind definition is converted through
// the exchange rate port; a missing rate is a hard failure, never an
// approximation.
func resolveCouponAmount(ctx context.Context, converter currency.Converter, cpn *coupon.Coupon, invCurrency string) (coupon.CouponAmount, error) {
	if def, ok := cpn.AmountFor(invCurrency); ok {
		return def, nil
	}
	if len(cpn.Amounts) == 0 {
		return coupon.CouponAmount{}, ierr.NewError("coupon has no amount definitions").
			WithReportableDetails(map[string]any{
				"coupon_id": cpn.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	def := cpn.Amounts[0]
	// percent discounts are currency independent
	if def.Kind == types.DiscountKindPercent {
		return def, nil
	}
	if converter == nil {
		return coupon.CouponAmount{}, ierr.NewError("currency conversion unavailable").
			WithHintf("coupon %s has no %s amount and no exchange rate source is configured", cpn.ID, invCurrency).
			Mark(ierr.ErrDependency)
	}
	converted, err := converter.Convert(ctx, def.Value, def.Currency, invCurrency)
	if err != nil {
		return coupon.CouponAmount{}, ierr.WithError(err).
			WithHintf("failed to convert coupon %s amount from %s to %s", cpn.ID, def.Currency, invCurrency).
			Mark(ierr.ErrDependency)
	}
	return coupon.CouponAmount{Currency: invCurrency, Kind: def.Kind, Value: converted}, nil
}
