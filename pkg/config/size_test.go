package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2G", 2 * gib},
		{"512M", 512 * 1024 * 1024},
		{"10K", 10 * 1024},
		{"1T", 1024 * gib},
		{"100", 100},
	}
	for _, c := range cases {
		got, err := ParseSize(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "ParseSize(%q)", c.in)
	}
}

func TestParseSizeInvalid(t *testing.T) {
	_, err := ParseSize("")
	assert.Error(t, err)
	_, err = ParseSize("abcG")
	assert.Error(t, err)
}
