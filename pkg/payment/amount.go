package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorExp is the number of fractional digits of the settlement currency (UZS tiyin).
const minorExp = 2

// NormalizeAmount accepts the amount under either alias ("amount" or
// "total_sum", major units) and returns it in minor units. Both nil yields 0
// so callers can fall back to the order total.
func NormalizeAmount(amount, totalSum *decimal.Decimal) (int64, error) {
	v := amount
	if v == nil {
		v = totalSum
	} else if totalSum != nil && !amount.Equal(*totalSum) {
		return 0, fmt.Errorf("%w: amount and total_sum disagree", ErrInvalidRequest)
	}
	if v == nil {
		return 0, nil
	}
	return ToMinor(*v)
}

// ToMinor converts a positive major-unit amount to minor units.
func ToMinor(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	shifted := d.Shift(minorExp)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidRequest, minorExp)
	}
	return shifted.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorExp)
}
