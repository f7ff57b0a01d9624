package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Money is a BRL amount in integer cents.
type Money int64

// Reais converts a decimal amount to Money, rounding to the nearest cent.
func Reais(r float64) Money {
	return Money(math.Round(r * 100))
}

// Float returns the decimal value of m.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// Percent returns pct percent of m, rounded half away from zero.
func (m Money) Percent(pct int64) Money {
	if m < 0 {
		return -(-m).Percent(pct)
	}
	return Money((int64(m)*pct + 50) / 100)
}

// String formats m the way the storefront shows prices, e.g. "R$ 1.250,50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := strconv.FormatInt(v/100, 10)
	for i := len(whole) - 3; i > 0; i -= 3 {
		whole = whole[:i] + "." + whole[i:]
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, whole, v%100)
}

// MarshalJSON encodes m as a decimal number with two places.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', 2, 64)), nil
}

// UnmarshalJSON accepts a JSON number in reais.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = Reais(f)
	return nil
}
