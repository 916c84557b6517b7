package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseQuantity strictly parses a decimal quantity. Empty strings, thousands
// separators, trailing garbage, negative values and values a float64 cannot
// hold are all rejected with ErrInvalidQuantity; nothing silently becomes
// zero.
func ParseQuantity(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fieldError("ParseQuantity", "", field, ErrInvalidQuantity)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fieldError("ParseQuantity", s, field, ErrInvalidQuantity)
	}
	if d.IsNegative() {
		return 0, fieldError("ParseQuantity", s, field, ErrInvalidQuantity)
	}
	f, exact := d.Float64()
	if !exact && (math.IsInf(f, 0) || (f == 0 && !d.IsZero())) {
		return 0, fieldError("ParseQuantity", s, field, ErrInvalidQuantity)
	}
	return f, nil
}

// checkQuantity rejects negative and non-finite quantities supplied
// directly as numbers.
func checkQuantity(op, id, field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fieldError(op, id, field, ErrInvalidQuantity)
	}
	return nil
}

// QuantityText is a quantity as written in imported input, either a JSON
// number or a JSON string. It is parsed with ParseQuantity when used.
type QuantityText string

func (q *QuantityText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*q = QuantityText(s)
		return nil
	}
	*q = QuantityText(bytes.TrimSpace(b))
	return nil
}

// sumQuantities adds values with exact decimal arithmetic so that totals do
// not drift from the displayed per-entry values.
func sumQuantities(values []float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}
