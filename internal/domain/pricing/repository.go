package pricing

import "context"

// Repository provides access to persisted packages and their pricings.
type Repository interface {
	GetPricing(ctx context.Context, id string) (*PackagePricing, error)
	GetPackage(ctx context.Context, id string) (*Package, error)
	ListPricings(ctx context.Context, packageID string) ([]*PackagePricing, error)
}
