package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidMoney is returned for money text that does not hold a number
var ErrInvalidMoney = errors.New("invalid money amount")

var moneyNoise = strings.NewReplacer("$", "", ",", "", " ", "")

// ParseMoney reads a plain number or "$1,299.99"-style text
func ParseMoney(s string) (decimal.Decimal, error) {
	clean := moneyNoise.Replace(strings.TrimSpace(s))
	if clean == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidMoney)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return d, nil
}

// Money is an amount as sent by a collaborator: a JSON number, money text or null.
// It is kept as text so one malformed value cannot fail a whole payload.
type Money string

func (m *Money) UnmarshalJSON(b []byte) error {
	s, err := rawText(b)
	if err != nil {
		return err
	}
	*m = Money(s)
	return nil
}

// IsEmpty reports whether no amount was sent
func (m Money) IsEmpty() bool {
	return strings.TrimSpace(string(m)) == ""
}

// Decimal parses the amount
func (m Money) Decimal() (decimal.Decimal, error) {
	return ParseMoney(string(m))
}
