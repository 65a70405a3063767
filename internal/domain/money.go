package domain

import (
	"fmt"
	"strings"
)

// Money is a fixed-point monetary value: whole currency units are never
// represented as float64, only as an integer count of minor units (cents,
// pence, ...) paired with an ISO-4217 currency code. Arithmetic across
// differing currencies is rejected rather than silently summed.
type Money struct {
	MinorUnits int64
	Currency   string
}

// MoneyFromMinorUnits constructs a Money directly from a minor-unit
// count, e.g. MoneyFromMinorUnits(22000, "EUR") for 220.00 EUR.
func MoneyFromMinorUnits(minor int64, currency string) Money {
	return Money{MinorUnits: minor, Currency: currency}
}

// ParseMoney parses a decimal amount string into a Money without ever
// passing through binary floating point. Thousands separators (commas)
// are stripped, so "1,234.56" and "1234.56" parse identically; integer
// inputs are widened with two implicit fraction digits ("1234" ==
// "1234.00"). More than two fraction digits are rejected rather than
// rounded.
func ParseMoney(s, currency string) (Money, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if raw == "" {
		return Money{}, fmt.Errorf("money: empty amount")
	}

	negative := false
	switch raw[0] {
	case '-':
		negative = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}

	intPart, fracPart, _ := strings.Cut(raw, ".")
	if intPart == "" {
		intPart = "0"
	}
	switch len(fracPart) {
	case 0:
		fracPart = "00"
	case 1:
		fracPart += "0"
	case 2:
	default:
		return Money{}, fmt.Errorf("money: %q has more than two fraction digits", s)
	}

	minor, err := parseDigits(intPart + fracPart)
	if err != nil {
		return Money{}, fmt.Errorf("money: cannot parse %q: %w", s, err)
	}
	if negative {
		minor = -minor
	}
	return Money{MinorUnits: minor, Currency: currency}, nil
}

func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("no digits")
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("unexpected character %q", c)
		}
		if n > (1<<62)/10 {
			return 0, fmt.Errorf("amount overflows")
		}
		n = n*10 + int64(c-'0')
	}
	return n, nil
}

// Format renders the amount as a plain decimal string ("1234.56") such
// that ParseMoney(m.Format(), m.Currency) round-trips to m exactly.
func (m Money) Format() string {
	minor := m.MinorUnits
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func (m Money) String() string {
	return m.Format() + " " + m.Currency
}

func (m Money) IsZero() bool { return m.MinorUnits == 0 }

// Add sums two Money values of the same currency. Mismatched currencies
// return an error rather than an arbitrary result.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{MinorUnits: m.MinorUnits + other.MinorUnits, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{MinorUnits: m.MinorUnits - other.MinorUnits, Currency: m.Currency}, nil
}
