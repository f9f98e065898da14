package wallet

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every amount.
const Scale = 2

var maxAmount = decimal.New(1, 12)

// ParseAmount parses user input into a positive amount with at most two decimals.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if err := checkAmount(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

func checkAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Round(Scale)) {
		return ErrInvalidAmount.withMsg("amount can have at most %d decimal places", Scale)
	}
	return nil
}

// ToMinor converts an amount to integer cents for storage.
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(Scale).Round(0).IntPart()
}

// FromMinor converts stored cents back to an amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}
