package types

import (
	"strings"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of decimal places quantities are normalized to.
const QuantityPrecision = 4

// ParseQuantity normalizes a quantity expression into a decimal with 4 decimal
// places. Accepted forms: "3", "1.25", "3/4" and mixed fractions like "1 1/2".
// Negative quantities are rejected.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ierr.NewError("quantity is required").
			Mark(ierr.ErrValidation)
	}

	whole := decimal.Zero
	frac := s

	// Mixed fraction: whole part followed by a fractional part
	if parts := strings.Fields(s); len(parts) == 2 && strings.Contains(parts[1], "/") {
		w, err := decimal.NewFromString(parts[0])
		if err != nil {
			return decimal.Zero, invalidQuantity(s, err)
		}
		whole = w
		frac = parts[1]
	}

	var value decimal.Decimal
	if num, den, ok := strings.Cut(frac, "/"); ok {
		n, err := decimal.NewFromString(strings.TrimSpace(num))
		if err != nil {
			return decimal.Zero, invalidQuantity(s, err)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(den))
		if err != nil {
			return decimal.Zero, invalidQuantity(s, err)
		}
		if d.IsZero() {
			return decimal.Zero, ierr.NewError("quantity denominator cannot be zero").
				WithHintf("got %q", s).
				Mark(ierr.ErrValidation)
		}
		value = n.Div(d)
	} else {
		v, err := decimal.NewFromString(frac)
		if err != nil {
			return decimal.Zero, invalidQuantity(s, err)
		}
		value = v
	}

	result := whole.Add(value).Round(QuantityPrecision)
	if result.IsNegative() {
		return decimal.Zero, ierr.NewError("quantity cannot be negative").
			WithHintf("got %q", s).
			Mark(ierr.ErrValidation)
	}
	return result, nil
}

func invalidQuantity(s string, err error) error {
	return ierr.WithError(err).
		WithHintf("invalid quantity %q", s).
		Mark(ierr.ErrValidation)
}
