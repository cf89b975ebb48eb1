package tax

import "context"

// Repository provides access to persisted tax rules.
type Repository interface {
	Get(ctx context.Context, id string) (*TaxRule, error)
	// ListForClient returns the tax rules applying to a client, ordered by
	// level ascending with exactly one rule per level.
	ListForClient(ctx context.Context, clientID string) ([]*TaxRule, error)
	Create(ctx context.Context, rule *TaxRule) error
	Update(ctx context.Context, rule *TaxRule) error
	Delete(ctx context.Context, id string) error
}
