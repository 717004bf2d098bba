package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil slice", input: nil, want: nil},
		{name: "empty slice", input: []string{}, want: []string{}},
		{
			name:  "trims whitespace",
			input: []string{"  kafka-1:9092  ", "kafka-2:9092"},
			want:  []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name:  "drops empties and duplicates, keeps first-seen order",
			input: []string{"a", "", "b", "  ", "a", "c", "b"},
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "case is preserved",
			input: []string{"Foo", "foo"},
			want:  []string{"Foo", "foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil slice", input: nil, want: nil},
		{
			name:  "case folds before deduping",
			input: []string{"EMAIL", "email", "Email"},
			want:  []string{"email"},
		},
		{
			name:  "trims, folds, and drops empties",
			input: []string{"  SMS ", "email", "sms", ""},
			want:  []string{"sms", "email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrimLower(tt.input))
		})
	}
}
