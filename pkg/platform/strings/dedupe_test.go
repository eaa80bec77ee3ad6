package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "trims, lowercases and dedupes",
			input:    []string{"  Login ", "login", "PASSWORD_RESET", ""},
			expected: []string{"login", "password_reset"},
		},
		{
			name:     "preserves first-seen order",
			input:    []string{"mfa", "api", "MFA", "api"},
			expected: []string{"mfa", "api"},
		},
		{
			name:     "whitespace-only entries dropped",
			input:    []string{"   ", "\t", "register"},
			expected: []string{"register"},
		},
		{
			name:     "nil input stays nil",
			input:    nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
