package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"alice@example.com", "Alice User"},
		{"alice.smith@example.com", "Alice Smith"},
		{"bob_van-dam@example.com", "Bob Dam"},
		{"carol+billing@example.com", "Carol Billing"},
		{"@example.com", "User User"},
		{"...", "User User"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.address))
		})
	}
}
