package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"basic with punctuation", "My Cool Project!", "my-cool-project"},
		{"collapses separator runs", "Hello -- __ World", "hello-world"},
		{"strips leading and trailing separators", "  !!Launchpad!!  ", "launchpad"},
		{"keeps digits", "Web3 Portfolio 2024", "web3-portfolio-2024"},
		{"already clean", "solana-pay", "solana-pay"},
		{"only separators", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}
