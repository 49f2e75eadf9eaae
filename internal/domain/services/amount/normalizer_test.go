package amount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_UnscaledInteger(t *testing.T) {
	got, err := Normalize("18053000", 6)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("18.053")), "got %s", got)
}

func TestNormalize_PlainDecimal(t *testing.T) {
	got, err := Normalize("12.34", 6)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("12.34")))
}

func TestNormalize_Hex(t *testing.T) {
	// 0x1137788 == 18053000
	got, err := Normalize("0x1137788", 6)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("18.053")), "got %s", got)
}

func TestNormalize_EncodingsAgree(t *testing.T) {
	// The same magnitude in all three encodings must normalize identically.
	fromInt, err := Normalize("7210000", 6)
	require.NoError(t, err)

	fromDec, err := Normalize("7.21", 6)
	require.NoError(t, err)

	fromHex, err := Normalize("0x6E0410", 6) // 7210000
	require.NoError(t, err)

	assert.True(t, fromInt.Equal(fromDec))
	assert.True(t, fromInt.Equal(fromHex))
}

func TestNormalize_CanonicalRounding(t *testing.T) {
	got, err := Normalize("1234567", 18)
	require.NoError(t, err)
	// 0.000000000001234567 rounds away at 6 places.
	assert.True(t, got.Equal(decimal.Zero), "got %s", got)

	got, err = Normalize("1.23456789", 0)
	require.NoError(t, err)
	assert.Equal(t, "1.234568", got.StringFixed(6))
}

func TestNormalize_Errors(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		decimals int32
	}{
		{"empty", "", 6},
		{"whitespace", "   ", 6},
		{"garbage", "abc", 6},
		{"bad hex", "0xZZ", 6},
		{"mixed", "12a34", 6},
		{"negative decimals", "100", -1},
		{"negative decimal string", "-1.5", 6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.raw, tc.decimals)
			assert.Error(t, err)
		})
	}
}
