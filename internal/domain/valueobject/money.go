package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/pkg/apperror"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a dollar amount into the integer minor units Stripe expects.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents is the inverse of ToCents.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// PositiveAmount validates a user-entered amount: strictly positive, at most two decimals.
func PositiveAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("invalid amount", map[string][]string{field: {"Must be greater than 0"}})
	}
	if !amount.Equal(amount.Round(2)) {
		return apperror.Validation("invalid amount", map[string][]string{field: {"At most two decimal places"}})
	}
	return nil
}

// FormatUSD renders an amount as $1,234.56.
func FormatUSD(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	out := make([]byte, 0, len(intPart)+len(intPart)/3)
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	return fmt.Sprintf("%s$%s%s", sign, out, frac)
}
