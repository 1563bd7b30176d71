// Package amount converts between decimal display strings and integer base units.
package amount

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "easybet/internal/errors"
	"easybet/internal/models"
)

// DefaultDecimals is the number of fractional digits of one whole unit.
const DefaultDecimals = 8

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Unit formats and parses amounts with a fixed number of decimals.
type Unit struct {
	decimals int32
}

// NewUnit returns a Unit with the given number of decimals.
func NewUnit(decimals int32) Unit {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	return Unit{decimals: decimals}
}

// Decimals returns the number of fractional digits.
func (u Unit) Decimals() int32 {
	return u.decimals
}

// Parse converts a decimal string such as "0.01" into base units.
// Negative values, excess precision and overflow are rejected.
func (u Unit) Parse(raw string) (models.Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, "amount is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid amount %q", raw)
	}
	if d.IsNegative() {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount %q is negative", raw)
	}
	base := d.Shift(u.decimals)
	if !base.IsInteger() {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount %q has more than %d decimals", raw, u.decimals)
	}
	if base.GreaterThan(maxAmount) {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount %q is too large", raw)
	}
	return models.Amount(base.IntPart()), nil
}

// Format renders base units as a decimal string without trailing zeros.
func (u Unit) Format(a models.Amount) string {
	return decimal.New(int64(a), -u.decimals).String()
}
