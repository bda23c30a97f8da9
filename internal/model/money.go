package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Money is a non-negative amount with two fraction digits, held as an
// integer number of cents. It maps onto a DECIMAL(10,2) column.
type Money int64

// MaxMoney is the largest value a DECIMAL(10,2) column accepts.
const MaxMoney Money = 99999999_99

var ErrInvalidMoney = errors.New("invalid amount")

// ParseMoney parses "1250", "1250.5" or "1250.50". More than two
// fraction digits, signs and exponents are rejected.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && (frac == "" || len(frac) > 2)) {
		return 0, ErrInvalidMoney
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, ErrInvalidMoney
			}
		}
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > int64(MaxMoney/100) {
		return 0, ErrInvalidMoney
	}
	var f int64
	if frac != "" {
		if len(frac) == 1 {
			frac += "0"
		}
		f, _ = strconv.ParseInt(frac, 10, 64)
	}
	m := Money(w*100 + f)
	if m > MaxMoney {
		return 0, ErrInvalidMoney
	}
	return m, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", int64(m)/100, int64(m)%100)
}

// MarshalJSON renders the amount as a decimal string, e.g. "950.00".
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "950.00" and 950.00.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
