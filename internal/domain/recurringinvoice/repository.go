package recurringinvoice

import (
	"context"
	"time"
)

// Repository provides access to recurring invoice definitions and the linkage
// between a definition and the invoices created from it.
type Repository interface {
	Get(ctx context.Context, id string) (*Definition, error)
	// ListDue returns definitions whose renew date is on or before the given time.
	ListDue(ctx context.Context, asOf time.Time) ([]*Definition, error)
	Update(ctx context.Context, def *Definition) error

	// CountCreated returns how many invoices have been created from the
	// definition. The count is derived from linkage records, not stored on
	// the definition itself.
	CountCreated(ctx context.Context, definitionID string) (int, error)

	// RecordCycle links a created invoice to the definition and advances the
	// definition's renew dates. Both writes must be applied atomically after a
	// successful invoice creation; a failure must leave neither applied.
	RecordCycle(ctx context.Context, definitionID, invoiceID string, newDateRenews, newDateLastRenewed time.Time) error
}
