package types

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a whole number of stock units as sent by clients. JSON
// numbers and numeric strings ("5", " 7 ", "4.0") are accepted; the sign is
// not checked here, the engine rejects non-positive quantities.
type Quantity int64

func (q Quantity) Int64() int64 { return int64(q) }

// QuantityError carries the raw input that did not parse.
type QuantityError struct {
	Raw string
}

func (e *QuantityError) Error() string {
	return "invalid quantity " + strconv.Quote(e.Raw)
}

// ParseQuantity reads a whole number within int64, allowing a zero fraction.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Quantity(n), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() || !d.BigInt().IsInt64() {
		return 0, &QuantityError{Raw: s}
	}
	return Quantity(d.IntPart()), nil
}

// UnmarshalJSON leaves null as zero so a missing quantity fails validation
// downstream, not decoding.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*q = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return &QuantityError{Raw: raw}
		}
		raw = s
	}
	v, err := ParseQuantity(raw)
	if err != nil {
		return err
	}
	*q = v
	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(q), 10), nil
}
