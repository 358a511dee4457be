/*
Package generic provides the domain-agnostic building blocks of the loan
engine.

PURPOSE:
  The loan package resolves status, due dates and fines from a loan record.
  Everything it needs that is not loan-specific lives here: tolerant dates,
  calendar-day spans, money, the error taxonomy, transition tables and the
  versioned record store contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount with a currency code (fines)
  - Record: A versioned opaque document (one loan row)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Totality: Parsing helpers degrade instead of failing
  3. Optimistic concurrency: Every stored record carries a version

SEE ALSO:
  - time.go: TimePoint and calendar-day arithmetic
  - store.go: RecordStore contract
  - machine.go: Transition tables for sub-workflows
*/
package generic

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Amount with currency
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const CurrencyIDR Currency = "IDR"

func NewMoney(value int64, currency Currency) Money {
	return Money{Value: decimal.NewFromInt(value), Currency: currency}
}

func (m Money) Zero() Money            { return Money{Value: decimal.Zero, Currency: m.Currency} }
func (m Money) Add(b Money) Money      { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) MulInt(n int) Money     { return Money{Value: m.Value.Mul(decimal.NewFromInt(int64(n))), Currency: m.Currency} }
func (m Money) IsZero() bool           { return m.Value.IsZero() }
func (m Money) IsPositive() bool       { return m.Value.IsPositive() }
func (m Money) Equal(b Money) bool     { return m.Currency == b.Currency && m.Value.Equal(b.Value) }
func (m Money) IntPart() int64         { return m.Value.IntPart() }
func (m Money) String() string         { return m.Value.StringFixed(0) + " " + string(m.Currency) }

// MarshalJSON writes the amount as a JSON number so stored caches stay
// readable by older clients that expect `fineAmount: 15000`.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Value.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	m.Value = d
	if m.Currency == "" {
		m.Currency = CurrencyIDR
	}
	return nil
}
