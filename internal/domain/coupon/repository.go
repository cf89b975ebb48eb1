package coupon

import "context"

// Repository provides access to persisted coupons.
type Repository interface {
	Get(ctx context.Context, id string) (*Coupon, error)
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	// IncrementUsage records one redemption. Called once per billing cycle in
	// which the coupon actually produced a non-zero discount.
	IncrementUsage(ctx context.Context, id string) error
}
