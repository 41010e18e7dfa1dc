package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepDelay(t *testing.T) {
	tests := []struct {
		name   string
		amount int
		unit   string
		want   time.Duration
	}{
		{"hours", 6, "hours", 6 * time.Hour},
		{"single hour", 1, "hours", time.Hour},
		{"days", 3, "days", 72 * time.Hour},
		{"single day", 1, "days", 24 * time.Hour},
		{"unknown unit treated as days", 2, "weeks", 48 * time.Hour},
		{"empty unit treated as days", 1, "", 24 * time.Hour},
		{"zero amount", 0, "days", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StepDelay(tt.amount, tt.unit))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3 days", FormatDuration(72*time.Hour))
	assert.Equal(t, "6.0 hours", FormatDuration(6*time.Hour))
	assert.Equal(t, "2.0 minutes", FormatDuration(2*time.Minute))
	assert.Equal(t, "45 seconds", FormatDuration(45*time.Second))
}

func TestPointer(t *testing.T) {
	v := Pointer(42)
	assert.Equal(t, 42, *v)

	s := Pointer("x")
	assert.Equal(t, "x", *s)
}
