package conv

import (
	"errors"
	"strings"

	"github.com/ericlagergren/decimal"
)

// UnitsPrecision is the number of significant digits kept for amounts in minimal units.
// numeric(78,0) columns fit in it with room to spare.
const UnitsPrecision = 100

// MaxUnitsDigits is the widest amount the numeric(78,0) columns can store
const MaxUnitsDigits = 78

// ErrInvalidUnits godoc
var ErrInvalidUnits = errors.New("INVALID_UNITS")

var zeroUnits decimal.Big

func init() {
	zeroUnits = decimal.Big{}
	zeroUnits.Context = decimal.Context128
	zeroUnits.Context.Precision = UnitsPrecision
	zeroUnits.Context.RoundingMode = decimal.ToZero
}

// NewUnits returns a zero integer amount with a context wide enough for base unit arithmetic
func NewUnits() *decimal.Big {
	z := zeroUnits
	return &z
}

// UnitsFromInt64 godoc
func UnitsFromInt64(v int64) *decimal.Big {
	return NewUnits().SetMantScale(v, 0)
}

// CloneUnits copies the amount into a new value that uses the units context
func CloneUnits(amount *decimal.Big) *decimal.Big {
	if amount == nil {
		return NewUnits()
	}
	return NewUnits().Copy(amount)
}

// ParseUnits parses an integer amount of minimal units.
// Exponent notation is accepted as long as the value is integral, e.g. "1e3".
func ParseUnits(amount string) (*decimal.Big, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, ErrInvalidUnits
	}
	dec, ok := NewUnits().SetString(amount)
	if !ok || dec.IsNaN(0) || dec.IsInf(0) || !dec.IsInt() {
		return nil, ErrInvalidUnits
	}
	if integerDigits(dec) > MaxUnitsDigits {
		return nil, ErrInvalidUnits
	}
	dec.Quantize(0)
	if dec.IsNaN(0) {
		return nil, ErrInvalidUnits
	}
	return dec, nil
}

// IsPositiveUnits reports whether the amount is a finite integer greater than zero
// that fits in MaxUnitsDigits digits
func IsPositiveUnits(amount *decimal.Big) bool {
	if amount == nil || amount.IsNaN(0) || amount.IsInf(0) {
		return false
	}
	return amount.IsInt() && amount.Sign() > 0 && integerDigits(amount) <= MaxUnitsDigits
}

// integerDigits counts the digits of an integral value, trailing zeros of the exponent included
func integerDigits(amount *decimal.Big) int {
	if amount.Sign() == 0 {
		return 1
	}
	return amount.Precision() - amount.Scale()
}

// FormatUnits prints an integer amount without exponent notation
func FormatUnits(amount *decimal.Big) string {
	if amount == nil {
		return "0"
	}
	return CloneUnits(amount).Quantize(0).String()
}

// FromUnits converts an amount of minimal units into whole tokens using the asset decimals
func FromUnits(units *decimal.Big, decimals uint8) *decimal.Big {
	tokens := CloneUnits(units)
	tokens.SetScale(tokens.Scale() + int(decimals))
	return tokens
}

// EstimateValue returns the value of the given units at the given price per whole token,
// rounded down to 8 decimals
func EstimateValue(units *decimal.Big, decimals uint8, price *decimal.Big) *decimal.Big {
	value := &decimal.Big{}
	value.Context = decimal.Context128
	value.Context.RoundingMode = decimal.ToZero
	value.Mul(FromUnits(units, decimals), price)
	return RoundToPrecision(value)
}

// RoundToPrecision truncates the value to 8 decimals in place
func RoundToPrecision(decAmount *decimal.Big) *decimal.Big {
	decAmount.Context = decimal.Context128
	decAmount.Context.RoundingMode = decimal.ToZero
	decAmount.Quantize(8)

	return decAmount
}

