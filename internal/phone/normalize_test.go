package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"already normalized", "6598578141", "6598578141", true},
		{"local eight digits", "98578141", "6598578141", true},
		{"leading trunk zero", "098578141", "6598578141", true},
		{"formatted international", "+65 9857 8141", "6598578141", true},
		{"dashes and brackets", "(65) 9857-8141", "6598578141", true},
		{"too short", "12345", "", false},
		{"nine digits without zero", "198578141", "", false},
		{"ten digits other country", "4498578141", "", false},
		{"letters only", "notanumber", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, raw := range []string{"98578141", "098578141", "+65 9857 8141", "6591234567"} {
		first, ok := Normalize(raw)
		assert.True(t, ok, raw)

		second, ok := Normalize(first)
		assert.True(t, ok, first)
		assert.Equal(t, first, second)
	}
}
