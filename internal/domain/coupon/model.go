package coupon

import (
	"time"

	"github.com/omnibill/omnibill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CouponAmount is the discount a coupon grants in one currency.
type CouponAmount struct {
	Currency string             `json:"currency"`
	Kind     types.DiscountKind `json:"kind"`
	Value    decimal.Decimal    `json:"value"`
}

// Coupon represents a discount coupon entity.
type Coupon struct {
	ID    string            `json:"id"`
	Code  string            `json:"code"`
	Name  string            `json:"name"`
	Scope types.CouponScope `json:"scope"`
	// Recurring coupons keep applying on renewal and mid-term change billing,
	// not just on the first invoice
	Recurring bool `json:"recurring"`
	// AppliesToOptions includes config option subtotals in the discount base
	AppliesToOptions bool `json:"applies_to_options"`
	// Amounts holds one discount definition per currency
	Amounts []CouponAmount `json:"amounts"`
	// PackageIDs are the packages the coupon is bound to
	PackageIDs   []string   `json:"package_ids"`
	MaxUses      *int       `json:"max_uses,omitempty"`
	Uses         int        `json:"uses"`
	RedeemAfter  *time.Time `json:"redeem_after,omitempty"`
	RedeemBefore *time.Time `json:"redeem_before,omitempty"`
	types.BaseModel
}

// IsRedeemable checks the redemption window and usage limit.
func (c *Coupon) IsRedeemable(now time.Time) bool {
	if c.RedeemAfter != nil && now.Before(*c.RedeemAfter) {
		return false
	}
	if c.RedeemBefore != nil && now.After(*c.RedeemBefore) {
		return false
	}
	if c.MaxUses != nil && c.Uses >= *c.MaxUses {
		return false
	}
	return true
}

// AppliesToPackage reports whether the coupon is bound to the package.
func (c *Coupon) AppliesToPackage(packageID string) bool {
	return lo.Contains(c.PackageIDs, packageID)
}

// MembershipSatisfied reports whether every bound package is present in the
// given set. Inclusive coupons only apply when this holds.
func (c *Coupon) MembershipSatisfied(presentPackageIDs []string) bool {
	for _, id := range c.PackageIDs {
		if !lo.Contains(presentPackageIDs, id) {
			return false
		}
	}
	return true
}

// AmountFor returns the discount definition for the given currency, if any.
func (c *Coupon) AmountFor(currency string) (CouponAmount, bool) {
	for _, a := range c.Amounts {
		if a.Currency == currency {
			return a, true
		}
	}
	return CouponAmount{}, false
}

// DiscountOn computes the discount the amount definition removes from base.
// Amount-kind discounts are capped at the base so a large coupon never drives
// a negative total on its own.
func (a CouponAmount) DiscountOn(base decimal.Decimal) decimal.Decimal {
	if base.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	switch a.Kind {
	case types.DiscountKindAmount:
		return decimal.Min(base, a.Value)
	case types.DiscountKindPercent:
		return base.Mul(a.Value).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero
	}
}
