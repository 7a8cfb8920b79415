// Package fixedpoint provides scaled-integer money types so that price and
// quantity math stays exact instead of going through float64.
package fixedpoint

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by Price and Quantity.
// 1 unit of Price equals 10^-Scale of the quoted asset.
const Scale int32 = 8

var (
	ErrPrecisionLoss = errors.New("value has more precision than the fixed-point scale")
	ErrOutOfRange    = errors.New("value does not fit in a 64-bit fixed-point integer")
	ErrNegative      = errors.New("value must not be negative")
)

// Price is a venue price scaled by 10^Scale.
type Price int64

// Quantity is an asset amount scaled by 10^Scale.
type Quantity int64

// ParsePrice converts a decimal string into a Price.
func ParsePrice(s string) (Price, error) {
	v, err := parseScaled(s)
	return Price(v), err
}

// ParseQuantity converts a decimal string into a Quantity.
// Negative quantities are rejected.
func ParseQuantity(s string) (Quantity, error) {
	v, err := parseScaled(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, ErrNegative
	}
	return Quantity(v), nil
}

func parseScaled(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse fixed-point %q: %w", s, err)
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%q: %w", s, ErrPrecisionLoss)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%q: %w", s, ErrOutOfRange)
	}
	return bi.Int64(), nil
}

// Decimal returns the unscaled decimal value.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -Scale)
}

func (p Price) String() string { return p.Decimal().String() }

// Decimal returns the unscaled decimal value.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -Scale)
}

func (q Quantity) String() string { return q.Decimal().String() }

// Sub returns q - o. The caller is expected to keep quantities non-negative;
// going below zero is a bookkeeping bug surfaced by the bool.
func (q Quantity) Sub(o Quantity) (Quantity, bool) {
	r := q - o
	return r, r >= 0
}

// Notional returns price*quantity as a decimal in quote units.
func Notional(p Price, q Quantity) decimal.Decimal {
	return p.Decimal().Mul(q.Decimal())
}
