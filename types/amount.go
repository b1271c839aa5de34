// Package types provides common types used across the vault.
package types

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	// ErrOverflow is returned when an addition exceeds the representable range.
	ErrOverflow = errors.New("amount: overflow")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("amount: underflow")
)

// MaxAmount is the largest representable Amount.
const MaxAmount = Amount(math.MaxUint64)

// Amount is a quantity of the vault's asset in its smallest indivisible unit.
// All arithmetic is checked: it never wraps and never saturates.
type Amount uint64

// Add returns a+b, or ErrOverflow when the sum does not fit.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return Amount(sum), nil
}

// Sub returns a-b, or ErrUnderflow when b is larger than a.
func (a Amount) Sub(b Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return Amount(diff), nil
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Uint64 returns the raw unit count.
func (a Amount) Uint64() uint64 { return uint64(a) }

// Decimal returns the amount scaled down by the asset's decimal places.
// Amount(150).Decimal(2) is 1.50.
func (a Amount) Decimal(decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -decimals)
}

// Format renders the amount in major units with exactly decimals fractional digits.
func (a Amount) Format(decimals int32) string {
	if decimals <= 0 {
		return a.String()
	}
	return a.Decimal(decimals).StringFixed(decimals)
}

// String returns the base-10 unit count.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// MarshalText encodes the amount as a decimal string so values above 2^53
// survive JSON round trips.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAmount parses a base-10 unit count.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return Amount(v), nil
}

// Sum adds all values, failing with ErrOverflow instead of wrapping.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
