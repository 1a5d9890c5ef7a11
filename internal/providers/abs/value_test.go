package abs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"134.5", 134.5},
		{"1,234.5%", 1234.5},
		{"-$2,000", -2000.0},
		{"−5", -5.0},
		{"$1,234,567", 1234567},
		{" 42 ", 42},
		{"+0.8%", 0.8},
		{"0", 0},
	}
	for _, tt := range tests {
		got, ok := ParseValue(tt.in)
		require.True(t, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseValueMissingTokens(t *testing.T) {
	for _, token := range []string{"na", "NP", "..", "n/a"} {
		_, ok := ParseValue(token)
		assert.False(t, ok, "token %q", token)
	}
}

func TestParseValueRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1.2.3", "see notes"} {
		_, ok := ParseValue(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestParseValueUnicodeMinusVariants(t *testing.T) {
	got, ok := ParseValue("−$1,500.25")
	require.True(t, ok)
	assert.Equal(t, -1500.25, got)
}
