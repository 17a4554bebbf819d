package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// moneyScale is the fixed number of fractional digits carried by Money.
// The engine never uses floating point for amounts.
const moneyScale = 4

var moneyScaleFactor int64 = 10000 // 10^moneyScale

// Money is a fixed-point decimal amount with a scale of 4, stored as the
// integer number of minor units (1 unit == 0.0001).
type Money int64

// Zero is the additive identity.
const Zero Money = 0

// ParseMoney parses a decimal string such as "100.0000" or "100" into
// Money. It rejects values with more than moneyScale fractional digits so
// that precision is never silently dropped.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("ParseMoney: empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && len(frac) > moneyScale {
		return 0, fmt.Errorf("ParseMoney: %q has more than %d fractional digits", s, moneyScale)
	}
	for len(frac) < moneyScale {
		frac += "0"
	}

	wholeVal, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ParseMoney: invalid integer part %q: %w", whole, err)
	}
	fracVal, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ParseMoney: invalid fractional part %q: %w", frac, err)
	}

	v := wholeVal*moneyScaleFactor + fracVal
	if neg {
		v = -v
	}
	return Money(v), nil
}

// MoneyFromMinorUnits builds Money directly from its integer minor-unit
// representation, e.g. for reading a BIGINT minor-unit column in the
// store adapter.
func MoneyFromMinorUnits(minorUnits int64) Money {
	return Money(minorUnits)
}

// MinorUnits returns the underlying integer minor-unit value.
func (m Money) MinorUnits() int64 { return int64(m) }

// String renders the amount with exactly moneyScale fractional digits.
func (m Money) String() string {
	v := int64(m)
	neg := v < 0
	if neg {
		v = -v
	}
	whole := v / moneyScaleFactor
	frac := v % moneyScaleFactor
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%04d", sign, whole, frac)
}

// MarshalJSON renders Money as a JSON number with exactly moneyScale
// fractional digits, e.g. 100 -> 100.0000.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return fmt.Errorf("Money.UnmarshalJSON: %w", err)
		}
		s = unquoted
	}
	v, err := ParseMoney(s)
	if err != nil {
		return fmt.Errorf("Money.UnmarshalJSON: %w", err)
	}
	*m = v
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money { return m + other }

// Sub returns m - other.
func (m Money) Sub(other Money) Money { return m - other }

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool { return m > 0 }

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool { return m < other }
