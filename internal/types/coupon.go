package types

import (
	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/samber/lo"
)

// CouponScope determines which line items a coupon discounts.
// Exclusive coupons discount only items of the packages they are bound to.
// Inclusive coupons discount the aggregate total and require every bound
// package to be present in the item set.
type CouponScope string

const (
	CouponScopeInclusive CouponScope = "inclusive"
	CouponScopeExclusive CouponScope = "exclusive"
)

var CouponScopeValues = []CouponScope{
	CouponScopeInclusive,
	CouponScopeExclusive,
}

func (s CouponScope) String() string {
	return string(s)
}

func (s CouponScope) Validate() error {
	if !lo.Contains(CouponScopeValues, s) {
		return ierr.NewError("invalid coupon scope").
			WithHint("Coupon scope must be either inclusive or exclusive").
			WithReportableDetails(map[string]any{
				"allowed_values": CouponScopeValues,
				"provided_value": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// DiscountKind is how a single coupon amount is expressed.
type DiscountKind string

const (
	DiscountKindAmount  DiscountKind = "amount"
	DiscountKindPercent DiscountKind = "percent"
)

var DiscountKindValues = []DiscountKind{
	DiscountKindAmount,
	DiscountKindPercent,
}

func (k DiscountKind) String() string {
	return string(k)
}

func (k DiscountKind) Validate() error {
	if !lo.Contains(DiscountKindValues, k) {
		return ierr.NewError("invalid discount kind").
			WithHint("Discount kind must be either amount or percent").
			WithReportableDetails(map[string]any{
				"allowed_values": DiscountKindValues,
				"provided_value": k,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
