package invoice

import "context"

// Repository provides access to persisted invoices.
type Repository interface {
	// CreateWithLineItems persists the invoice and its lines in one unit of
	// work; a failure must leave no partial invoice behind.
	CreateWithLineItems(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	ListByClient(ctx context.Context, clientID string) ([]*Invoice, error)
}
