// Package core holds the finance domain: entities, money handling and the
// dashboard aggregation functions.
package core

import (
	"strconv"
	"strings"
)

// ParseAmount converts a user-entered decimal string to Money.
//
// Accepted forms: "12", "12.5", "12,50", "1,234.56", "1.234,56", "$ 20".
// When both separators appear the rightmost one is the decimal mark and the
// other is digit grouping. A lone comma followed by exactly three digits is
// treated as grouping ("1,234" is 1234.00). Digits past the second decimal
// are rounded half-up. Signs and zero are rejected.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "$€£ ")
	if s == "" || strings.ContainsAny(s, "+-") {
		return Money{}, ErrInvalidAmount
	}

	intPart, fracPart, ok := splitDecimal(s)
	if !ok {
		return Money{}, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return Money{}, ErrInvalidAmount
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || units > (1<<63-1)/100-1 {
		return Money{}, ErrInvalidAmount
	}

	var cents int64
	for i := 0; i < len(fracPart) && i < 2; i++ {
		d := int64(fracPart[i] - '0')
		if i == 0 {
			cents += d * 10
		} else {
			cents += d
		}
	}
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		cents++
	}

	total := units*100 + cents
	if total <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: total}, nil
}

// splitDecimal separates the integer digits (grouping removed) from the
// fractional digits.
func splitDecimal(s string) (string, string, bool) {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	sep := dot
	if comma > dot {
		sep = comma
	}
	if sep < 0 {
		return s, "", true
	}
	if dot >= 0 && comma >= 0 {
		group := ","
		if s[sep] == ',' {
			group = "."
		}
		intPart, ok := ungroup(s[:sep], group)
		return intPart, s[sep+1:], ok
	}
	mark := s[sep : sep+1]
	if strings.Count(s, mark) > 1 || (mark == "," && len(s)-sep-1 == 3) {
		intPart, ok := ungroup(s, mark)
		return intPart, "", ok
	}
	return s[:sep], s[sep+1:], true
}

// ungroup strips digit-grouping marks, requiring groups of three.
func ungroup(s, mark string) (string, bool) {
	parts := strings.Split(s, mark)
	if len(parts) == 1 {
		return s, true
	}
	if parts[0] == "" || len(parts[0]) > 3 {
		return "", false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return "", false
		}
	}
	return strings.Join(parts, ""), true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Format renders the amount with a currency symbol, comma grouping and two
// decimals, e.g. "$1,234.56" or "-$15.99".
func (m Money) Format(symbol string) string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range units {
		if i > 0 && (len(units)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	fs := strconv.FormatInt(frac, 10)
	if frac < 10 {
		fs = "0" + fs
	}
	return sign + symbol + b.String() + "." + fs
}

// Decimal renders the amount as a plain decimal string ("4358.51").
func (m Money) Decimal() string {
	return strings.ReplaceAll(m.Format(""), ",", "")
}
