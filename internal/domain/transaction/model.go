package transaction

import (
	"context"
	"time"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes ledger entries on a client account.
type TransactionType string

const (
	// TransactionTypeCredit is an in-house credit applied to the client's account
	TransactionTypeCredit TransactionType = "credit"
	// TransactionTypePayment is an external payment receipt
	TransactionTypePayment TransactionType = "payment"
)

// Transaction is one ledger entry on a client account.
type Transaction struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	DateAdded time.Time       `json:"date_added"`
	types.BaseModel
}

func (t *Transaction) Validate() error {
	if t.ClientID == "" {
		return ierr.NewError("transaction client is required").
			Mark(ierr.ErrValidation)
	}
	if t.Amount.IsNegative() {
		return ierr.NewError("transaction amount cannot be negative").
			WithReportableDetails(map[string]any{
				"amount": t.Amount,
			}).
			Mark(ierr.ErrValidation)
	}
	return types.ValidateCurrencyCode(t.Currency)
}

// Repository provides access to client account transactions.
type Repository interface {
	Create(ctx context.Context, txn *Transaction) error
	ListByClient(ctx context.Context, clientID string) ([]*Transaction, error)
}
