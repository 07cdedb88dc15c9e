package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseMoney converts a decimal string such as "12.50" or "12,5" to Money.
//
// Only strictly positive amounts are accepted. Digits past the second
// decimal place are rounded half-up.
func ParseMoney(s string) (Money, error) {
	cents, err := parseCents(s, false)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

// ParseBudget is like ParseMoney but also accepts zero, which means
// "no budget".
func ParseBudget(s string) (Money, error) {
	cents, err := parseCents(s, true)
	if err != nil {
		return Money{}, err
	}
	return Money{Cents: cents}, nil
}

func parseCents(s string, allowZero bool) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidAmount
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, ErrInvalidAmount
	}
	var cents int64
	for i := 0; i < 2 && i < len(frac); i++ {
		cents = cents*10 + int64(frac[i]-'0')
	}
	if len(frac) == 1 {
		cents *= 10
	}
	if len(frac) > 2 && frac[2] >= '5' {
		cents++
	}
	total := units*100 + cents
	if total < 0 || (total == 0 && !allowZero) {
		return 0, ErrInvalidAmount
	}
	return total, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromFloat rounds a float amount to the nearest cent.
func FromFloat(v float64) Money {
	return Money{Cents: int64(math.Round(v * 100))}
}

// Amount returns the value as a float64 for display and JSON.
// Calculations stay in cents.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
