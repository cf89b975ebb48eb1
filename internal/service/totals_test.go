package service

import (
	"context"
	"testing"
	"time"

	"github.com/omnibill/omnibill/internal/config"
	"github.com/omnibill/omnibill/internal/domain/coupon"
	"github.com/omnibill/omnibill/internal/domain/invoice"
	"github.com/omnibill/omnibill/internal/domain/tax"
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/logger"
	"github.com/omnibill/omnibill/internal/testutil"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServiceParams() ServiceParams {
	return ServiceParams{
		Logger:               logger.NewNopLogger(),
		Config:               config.GetDefaultConfig(),
		TaxRuleRepo:          testutil.NewInMemoryTaxRuleStore(),
		CouponRepo:           testutil.NewInMemoryCouponStore(),
		InvoiceRepo:          testutil.NewInMemoryInvoiceStore(),
		RecurringInvoiceRepo: testutil.NewInMemoryRecurringInvoiceStore(),
		TransactionRepo:      testutil.NewInMemoryTransactionStore(),
		ServiceRepo:          testutil.NewInMemoryServiceStore(),
		PricingRepo:          testutil.NewInMemoryPricingStore(),
	}
}

func taxedBilling() types.BillingContext {
	return types.BillingContext{
		CompanyID: "company_test",
		EnableTax: true,
	}
}

func line(packageID string, qty, unit int64, taxable bool) *invoice.LineItem {
	return &invoice.LineItem{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
		PackageID:  packageID,
		Quantity:   decimal.NewFromInt(qty),
		UnitAmount: decimal.NewFromInt(unit),
		Taxable:    taxable,
	}
}

func taxRule(level int, pct string, typ types.TaxRuleType) *tax.TaxRule {
	return &tax.TaxRule{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TAX_RULE),
		Name:       "Tax",
		Level:      level,
		Percentage: decimal.RequireFromString(pct),
		Type:       typ,
	}
}

func TestTotals_ExclusiveTax(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 2, 50, true)},
		TaxRules: []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeExclusive)},
	})
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.TaxSubtotal.IsZero())
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(10)))
	// exclusive taxes never land in the collectable total
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.TotalWithTax.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, "110.00", totals.TotalWithTaxFormatted)
}

func TestTotals_InclusiveTax(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, true)},
		TaxRules: []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeInclusive)},
	})
	require.NoError(t, err)

	assert.True(t, totals.TaxSubtotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(110)))
	assert.True(t, totals.TotalWithTax.Equal(decimal.NewFromInt(110)))
}

func TestTotals_CascadeSetting(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	rules := []*tax.TaxRule{
		taxRule(1, "10", types.TaxRuleTypeExclusive),
		taxRule(2, "5", types.TaxRuleTypeExclusive),
	}

	billing := taxedBilling()
	billing.CascadeTax = true
	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  billing,
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, true)},
		TaxRules: rules,
	})
	require.NoError(t, err)

	// level 2 taxes 100 + 10.00
	require.Len(t, totals.TaxLevels, 2)
	assert.True(t, totals.TaxLevels[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.TaxLevels[1].Amount.Equal(decimal.RequireFromString("5.50")))
	assert.True(t, totals.TaxTotal.Equal(decimal.RequireFromString("15.50")))

	// the company setting overrides per-rule flags
	billing.CascadeTax = false
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  billing,
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, true)},
		TaxRules: rules,
	})
	require.NoError(t, err)
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(15)))
}

func TestTotals_TaxLevelsMergeAcrossLines(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items: []*invoice.LineItem{
			line("pkg_a", 1, 100, true),
			line("pkg_b", 1, 250, true),
		},
		TaxRules: []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeExclusive)},
	})
	require.NoError(t, err)

	require.Len(t, totals.TaxLevels, 1)
	assert.True(t, totals.TaxLevels[0].Amount.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, "35.00", totals.TaxLevels[0].AmountFormatted)
}

func TestTotals_TaxExemptAndUntaxableLines(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	rules := []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeExclusive)}

	billing := taxedBilling()
	billing.TaxExempt = true
	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  billing,
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, true)},
		TaxRules: rules,
	})
	require.NoError(t, err)
	assert.True(t, totals.TaxTotal.IsZero())

	// untaxable line in a taxed invoice
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items: []*invoice.LineItem{
			line("pkg_a", 1, 100, true),
			line("pkg_b", 1, 100, false),
		},
		TaxRules: rules,
	})
	require.NoError(t, err)
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(200)))
}

func TestTotals_SetupFees(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	rules := []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeExclusive)}

	item := line("pkg_a", 1, 100, true)
	item.SetupFee = decimal.NewFromInt(50)

	// setup fee billed but not taxed
	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{item},
		TaxRules: rules,
		Fees:     FeeSelection{Setup: true},
	})
	require.NoError(t, err)
	assert.True(t, totals.SetupFees.Equal(decimal.NewFromInt(50)))
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(10)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(150)))

	// setup fee joins the tax base when the company taxes it
	billing := taxedBilling()
	billing.SetupFeeTaxable = true
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  billing,
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{item},
		TaxRules: rules,
		Fees:     FeeSelection{Setup: true},
	})
	require.NoError(t, err)
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(15)))
	assert.True(t, totals.TotalWithTax.Equal(decimal.NewFromInt(165)))

	// renewal billing skips the fee entirely
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  taxedBilling(),
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{item},
		TaxRules: rules,
	})
	require.NoError(t, err)
	assert.True(t, totals.SetupFees.IsZero())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(100)))
}

func TestTotals_SetupFeeTaxedOnItsOwnCascade(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	rules := []*tax.TaxRule{taxRule(1, "10", types.TaxRuleTypeExclusive)}

	// the fee is taxed on its own cascade run, so the per-level amounts
	// round separately: 10% of 100.04 plus 10% of 0.04 is 10.00, not the
	// 10.01 a single run over 100.08 would round to
	item := line("pkg_a", 1, 100, true)
	item.UnitAmount = decimal.RequireFromString("100.04")
	item.SetupFee = decimal.RequireFromString("0.04")

	billing := taxedBilling()
	billing.SetupFeeTaxable = true
	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  billing,
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{item},
		TaxRules: rules,
		Fees:     FeeSelection{Setup: true},
	})
	require.NoError(t, err)
	assert.True(t, totals.TaxTotal.Equal(decimal.NewFromInt(10)), "got %s", totals.TaxTotal)
	require.Len(t, totals.TaxLevels, 1)
	assert.True(t, totals.TaxLevels[0].Amount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "110.08", totals.TotalWithTax.StringFixed(2))
}

func TestTotals_ExclusiveCoupon(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	cpn := &coupon.Coupon{
		ID:         "coupon_1",
		Code:       "SAVE30",
		Scope:      types.CouponScopeExclusive,
		PackageIDs: []string{"pkg_a"},
		Amounts: []coupon.CouponAmount{
			{Currency: "usd", Kind: types.DiscountKindAmount, Value: decimal.NewFromInt(30)},
		},
	}

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items: []*invoice.LineItem{
			line("pkg_a", 1, 100, false),
			line("pkg_b", 1, 100, false),
		},
		Coupon: cpn,
	})
	require.NoError(t, err)

	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(30)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(170)))
}

func TestTotals_InclusiveCouponMembership(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	cpn := &coupon.Coupon{
		ID:         "coupon_1",
		Scope:      types.CouponScopeInclusive,
		PackageIDs: []string{"pkg_a", "pkg_c"},
		Amounts: []coupon.CouponAmount{
			{Currency: "usd", Kind: types.DiscountKindPercent, Value: decimal.NewFromInt(10)},
		},
	}

	// one bound package missing: the coupon does not apply at all
	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, false)},
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.IsZero())

	// all bound packages present: discount on the bound lines only
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items: []*invoice.LineItem{
			line("pkg_a", 1, 100, false),
			line("pkg_c", 1, 100, false),
			line("pkg_other", 1, 100, false),
		},
		Coupon: cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(20)))
}

func TestTotals_CouponOptionLines(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	optionLine := line("pkg_a", 1, 40, false)
	optionLine.IsOption = true
	items := []*invoice.LineItem{line("pkg_a", 1, 100, false), optionLine}

	cpn := &coupon.Coupon{
		ID:         "coupon_1",
		Scope:      types.CouponScopeExclusive,
		PackageIDs: []string{"pkg_a"},
		Amounts: []coupon.CouponAmount{
			{Currency: "usd", Kind: types.DiscountKindPercent, Value: decimal.NewFromInt(50)},
		},
	}

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    items,
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(50)), "options excluded from the base")

	cpn.AppliesToOptions = true
	totals, err = svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    items,
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(70)))
}

func TestTotals_DiscountNeverExceedsSubtotal(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	cpn := &coupon.Coupon{
		ID:         "coupon_1",
		Scope:      types.CouponScopeExclusive,
		PackageIDs: []string{"pkg_a"},
		Amounts: []coupon.CouponAmount{
			{Currency: "usd", Kind: types.DiscountKindAmount, Value: decimal.NewFromInt(500)},
		},
	}

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, false)},
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Total.IsZero())
}

func TestTotals_ExpiredCouponIgnored(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())
	expired := time.Now().Add(-time.Hour)
	cpn := &coupon.Coupon{
		ID:           "coupon_1",
		Scope:        types.CouponScopeExclusive,
		PackageIDs:   []string{"pkg_a"},
		RedeemBefore: &expired,
		Amounts: []coupon.CouponAmount{
			{Currency: "usd", Kind: types.DiscountKindAmount, Value: decimal.NewFromInt(30)},
		},
	}

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, false)},
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.IsZero())
}

func TestTotals_CouponCurrencyConversion(t *testing.T) {
	cpn := &coupon.Coupon{
		ID:         "coupon_1",
		Scope:      types.CouponScopeExclusive,
		PackageIDs: []string{"pkg_a"},
		Amounts: []coupon.CouponAmount{
			{Currency: "eur", Kind: types.DiscountKindAmount, Value: decimal.NewFromInt(10)},
		},
	}

	params := newTestServiceParams()
	params.Converter = testutil.NewFixedRateConverter(map[string]decimal.Decimal{
		"eur:usd": decimal.NewFromInt(2),
	})
	svc := NewTotalsService(params)

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, false)},
		Coupon:   cpn,
	})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(20)))

	// a missing rate is a hard failure, never a silently skipped discount
	bare := NewTotalsService(newTestServiceParams())
	_, err = bare.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 100, false)},
		Coupon:   cpn,
	})
	require.Error(t, err)
	assert.True(t, ierr.IsDependency(err))
}

func TestTotals_CurrencyMismatchRejected(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	item := line("pkg_a", 1, 100, false)
	item.Currency = "eur"
	_, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "usd",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{item},
	})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestTotals_ZeroDecimalCurrency(t *testing.T) {
	svc := NewTotalsService(newTestServiceParams())

	totals, err := svc.Calculate(context.Background(), TotalsParams{
		Billing:  types.BillingContext{CompanyID: "company_test"},
		Currency: "jpy",
		Now:      time.Now(),
		Items:    []*invoice.LineItem{line("pkg_a", 1, 1000, false)},
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", totals.TotalFormatted)
}
