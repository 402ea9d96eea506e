package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeName(t *testing.T) {
	testCases := []struct {
		query string
		want  string
	}{
		{"golang", "golang"},
		{"hello world", "hello world"},
		{"snake_case-and-kebab", "snake_case-and-kebab"},
		{"a/b?c", "a_b_c"},
		{"#btc OR $eth", "_btc OR _eth"},
		{"../../etc/passwd", "______etc_passwd"},
		{"café 東京", "café 東京"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, SafeName(tc.query))
		})
	}
}

func TestSafeNameCollision(t *testing.T) {
	assert.Equal(t, SafeName("a/b"), SafeName("a?b"))
}
