// Package currency defines the exchange rate conversion port. Rates themselves
// are owned by an external service; this layer only consumes them.
package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// Converter converts an amount between two currencies using the company's
// configured exchange rates. Implementations must return an error rather than
// an approximate amount when a rate is unavailable.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}
