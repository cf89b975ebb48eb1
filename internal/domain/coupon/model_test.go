package coupon

import (
	"testing"
	"time"

	"github.com/omnibill/omnibill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCoupon_IsRedeemable(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	c := &Coupon{}
	assert.True(t, c.IsRedeemable(now))

	c = &Coupon{RedeemAfter: lo.ToPtr(now.Add(time.Hour))}
	assert.False(t, c.IsRedeemable(now))

	c = &Coupon{RedeemBefore: lo.ToPtr(now.Add(-time.Hour))}
	assert.False(t, c.IsRedeemable(now))

	c = &Coupon{MaxUses: lo.ToPtr(5), Uses: 5}
	assert.False(t, c.IsRedeemable(now))

	c = &Coupon{MaxUses: lo.ToPtr(5), Uses: 4}
	assert.True(t, c.IsRedeemable(now))
}

func TestCoupon_MembershipSatisfied(t *testing.T) {
	c := &Coupon{PackageIDs: []string{"pkg_a", "pkg_b"}}

	assert.True(t, c.MembershipSatisfied([]string{"pkg_a", "pkg_b", "pkg_c"}))
	assert.False(t, c.MembershipSatisfied([]string{"pkg_a"}))
	assert.True(t, (&Coupon{}).MembershipSatisfied(nil))
}

func TestCouponAmount_DiscountOn(t *testing.T) {
	amount := CouponAmount{Currency: "usd", Kind: types.DiscountKindAmount, Value: decimal.NewFromInt(50)}
	percent := CouponAmount{Currency: "usd", Kind: types.DiscountKindPercent, Value: decimal.NewFromInt(25)}

	// amount capped at base
	assert.True(t, amount.DiscountOn(decimal.NewFromInt(30)).Equal(decimal.NewFromInt(30)))
	assert.True(t, amount.DiscountOn(decimal.NewFromInt(80)).Equal(decimal.NewFromInt(50)))

	assert.True(t, percent.DiscountOn(decimal.NewFromInt(80)).Equal(decimal.NewFromInt(20)))

	// nothing to discount
	assert.True(t, amount.DiscountOn(decimal.Zero).IsZero())
	assert.True(t, percent.DiscountOn(decimal.NewFromInt(-10)).IsZero())
}
