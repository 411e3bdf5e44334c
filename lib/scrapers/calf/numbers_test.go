package calf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"52.630,39", "52630.39"},
		{"0,00", "0"},
		{"$ 1.234,56", "1234.56"},
		{"1.234", "1234"},
		{"12.34", "12.34"},
		{"52630.39", "52630.39"},
		{"1.234.567,89", "1234567.89"},
		{"987", "987"},
	}
	for _, c := range cases {
		got, err := ParseAmount(c.in)
		require.NoError(t, err, "input %q", c.in)
		require.Equal(t, c.want, got.String(), "input %q", c.in)
	}
}

func TestParseAmountIdempotent(t *testing.T) {
	first, err := ParseAmount("52.630,39")
	require.NoError(t, err)

	second, err := ParseAmount(first.String())
	require.NoError(t, err)
	require.True(t, first.Equal(second))
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	_, err := ParseAmount("sin deuda")
	require.Error(t, err)

	_, err = ParseAmount("")
	require.Error(t, err)
}
