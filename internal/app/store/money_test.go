package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCents(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		cents int64
	}{
		{name: "plain string", in: "100.00", cents: 10000},
		{name: "one decimal", in: "99.5", cents: 9950},
		{name: "no decimals", in: "42", cents: 4200},
		{name: "negative", in: "-3.25", cents: -325},
		{name: "float", in: float64(150.00), cents: 15000},
		{name: "float with cents", in: float64(0.07), cents: 7},
		{name: "int", in: 12, cents: 1200},
		{name: "int64", in: int64(9), cents: 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCents(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.cents, got)
		})
	}
}

func TestParseCentsRejects(t *testing.T) {
	for _, in := range []any{"", "abc", "1.2.3", "1.234", true, nil} {
		_, err := ParseCents(in)
		assert.Error(t, err, "input %v", in)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "100.00", FormatCents(10000))
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "0.07", FormatCents(7))
	assert.Equal(t, "800.00", FormatCents(80000))
	assert.Equal(t, "-3.25", FormatCents(-325))
	assert.Equal(t, "1500.50", FormatCents(150050))
}

func TestMoneyRoundTripsThroughCanonicalForm(t *testing.T) {
	for _, s := range []string{"0.00", "100.00", "149.99", "-12.50"} {
		cents, err := ParseCents(s)
		require.NoError(t, err)
		assert.Equal(t, s, FormatCents(cents))
	}
}
