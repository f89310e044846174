package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Quantity
		wantErr bool
	}{
		{name: "number", input: `5`, want: 5},
		{name: "string", input: `"12"`, want: 12},
		{name: "padded string", input: `" 7 "`, want: 7},
		{name: "zero fraction", input: `4.0`, want: 4},
		{name: "negative", input: `-3`, want: -3},
		{name: "null", input: `null`, want: 0},
		{name: "fraction", input: `2.5`, wantErr: true},
		{name: "word", input: `"abc"`, wantErr: true},
		{name: "empty string", input: `""`, wantErr: true},
		{name: "overflow number", input: `18446744073709551621`, wantErr: true},
		{name: "overflow string", input: `"18446744073709551621"`, wantErr: true},
		{name: "overflow with fraction", input: `9223372036854775808.0`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tt.input), &q)
			if tt.wantErr {
				var qe *QuantityError
				require.ErrorAs(t, err, &qe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestMulQty(t *testing.T) {
	got := MulQty(MustMoney("12.50"), 4)
	assert.True(t, got.Equal(MustMoney("50")))
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(" 10 ")
	require.NoError(t, err)
	assert.Equal(t, int64(10), q.Int64())

	_, err = ParseQuantity("1e400x")
	var qe *QuantityError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, `invalid quantity "1e400x"`, err.Error())

	q, err = ParseQuantity("9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), q.Int64())

	_, err = ParseQuantity("18446744073709551621")
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "18446744073709551621", qe.Raw)

	_, err = ParseQuantity("-9223372036854775809.00")
	require.ErrorAs(t, err, &qe)
}

func TestQuantity_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Qty Quantity `json:"qty"`
	}{Qty: 42})
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":42}`, string(b))
}
