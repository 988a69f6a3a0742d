package fileintegrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1", 1},
		{"512B", 512},
		{"4k", 4096},
		{"4KB", 4096},
		{"4KiB", 4096},
		{"1M", 1 << 20},
		{" 2m ", 2 << 20},
		{"1.5M", 3 << 19},
		{"1G", 1 << 30},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseHumanSize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseHumanSizeErrors(t *testing.T) {
	for _, input := range []string{"", "M", "0", "0.1", "12X", "1.2.3K", "-1"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseHumanSize(input)
			assert.Error(t, err)
		})
	}
}
