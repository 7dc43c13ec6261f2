package reporting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no replacements",
			input:    "failed to open cache directory",
			expected: "failed to open cache directory",
		},
		{
			name:     "cache key",
			input:    "could not stream entry 9e107d9d372bb6826bd81d3542a419d6: gone",
			expected: "could not stream entry <key>: gone",
		},
		{
			name:     "chapter url",
			input:    `failed to fetch https://truyenfull.vn/chuong-12/: timeout`,
			expected: "failed to fetch <url> timeout",
		},
		{
			name:     "key and url",
			input:    "9e107d9d372bb6826bd81d3542a419d6 for http://example.com/c/1 busy",
			expected: "<key> for <url> busy",
		},
		{
			name:     "uppercase hex is not a key",
			input:    "9E107D9D372BB6826BD81D3542A419D6",
			expected: "9E107D9D372BB6826BD81D3542A419D6",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, sanitizeError(tc.input))
		})
	}
}
