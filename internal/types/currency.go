package types

import (
	"strings"

	ierr "github.com/omnibill/omnibill/internal/errors"
	"github.com/shopspring/decimal"
)

// CURRENCY_CODES_SYMBOLS is a map of 3 digit ISO currency codes to their symbols
var CURRENCY_CODES_SYMBOLS = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
	"aud": "AU$",
	"cad": "CA$",
	"chf": "CHF",
	"sek": "kr",
	"nzd": "NZ$",
	"hkd": "HK$",
	"sgd": "S$",
	"jpy": "¥",
	"cny": "¥",
	"inr": "₹",
	"brl": "R$",
	"rub": "₽",
	"mxn": "MX$",
	"krw": "₩",
	"try": "₺",
	"zar": "R",
	"myr": "RM",
}

// zeroDecimalCurrencies are ISO currencies whose minor unit is the whole unit.
var zeroDecimalCurrencies = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
}

// GetCurrencySymbol returns the symbol for a given currency code
// if the code is not found, it returns the code itself
func GetCurrencySymbol(code string) string {
	if symbol, ok := CURRENCY_CODES_SYMBOLS[strings.ToLower(code)]; ok {
		return symbol
	}
	return code
}

// GetCurrencyPrecision returns the number of decimal places amounts in the
// given currency are stored and displayed with.
func GetCurrencyPrecision(code string) int32 {
	if zeroDecimalCurrencies[strings.ToLower(code)] {
		return 0
	}
	return 2
}

// ValidateCurrencyCode checks that the code is a 3 letter ISO-4217 style code.
func ValidateCurrencyCode(code string) error {
	if len(code) != 3 {
		return ierr.NewError("invalid currency code").
			WithHintf("currency code must be 3 letters, got %q", code).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RoundToCurrencyPrecision rounds an amount to the currency's precision.
// Rounding happens at presentation and storage boundaries only, never between
// chained calculations.
func RoundToCurrencyPrecision(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(GetCurrencyPrecision(currency))
}

// FormatAmountToString formats an amount for display in the given currency.
func FormatAmountToString(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(GetCurrencyPrecision(currency))
}

// ParseAmount parses a formatted amount string back into a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ierr.WithError(err).
			WithHintf("invalid amount %q", s).
			Mark(ierr.ErrValidation)
	}
	return amount, nil
}
