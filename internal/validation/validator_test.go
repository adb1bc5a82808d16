package validation

import (
	"errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"testing"
)

type sample struct {
	Name  string          `validate:"required,max=10"`
	Price decimal.Decimal `validate:"money"`
	Rate  decimal.Decimal `validate:"percent"`
	Stock int             `validate:"gte=0"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		desc string
		in   sample
		want string
	}{
		{"valid", sample{Name: "Basic", Price: decimal.NewFromInt(10), Rate: decimal.NewFromInt(5)}, ""},
		{"missing name", sample{Price: decimal.Zero}, "name is required"},
		{"negative price", sample{Name: "a", Price: decimal.NewFromInt(-1)}, "price must be a non-negative amount"},
		{"rate over 100", sample{Name: "a", Rate: decimal.NewFromInt(101)}, "rate must be between 0 and 100"},
		{"negative stock", sample{Name: "a", Stock: -2}, "stock must be at least 0"},
	}
	for _, tt := range tests {
		err := Struct(tt.in)
		if tt.want == "" {
			require.NoError(t, err, tt.desc)
			continue
		}
		var verr *Error
		require.True(t, errors.As(err, &verr), tt.desc)
		require.Equal(t, tt.want, verr.Message, tt.desc)
	}
}
