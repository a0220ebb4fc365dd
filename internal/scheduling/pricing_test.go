package scheduling

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tutoring-scheduler/internal/data/entity"
)

func TestTotalAmount(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		minutes  int
		expected string
	}{
		{"one hour", "200000", 60, "200000"},
		{"ninety minutes", "200000", 90, "300000"},
		{"thirty minutes", "150000", 30, "75000"},
		{"rounds half up", "0.01", 30, "0.01"},
		{"rounds down below half", "0.01", 20, "0"},
		{"repeating fraction", "100.01", 61, "101.68"},
		{"zero rate", "0", 120, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalAmount(decimal.RequireFromString(tt.rate), tt.minutes)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestApplyPricingRecomputesAfterDurationChange(t *testing.T) {
	s := &entity.Session{HourlyRate: decimal.NewFromInt(200000), DurationMinutes: 60}
	ApplyPricing(s)
	assert.Equal(t, "200000", s.TotalAmount.String())

	s.DurationMinutes = 90
	ApplyPricing(s)
	assert.Equal(t, "300000", s.TotalAmount.String())
}

func TestApplyPricingIsStableUnderRepetition(t *testing.T) {
	s := &entity.Session{HourlyRate: decimal.RequireFromString("123.45"), DurationMinutes: 47}
	ApplyPricing(s)
	first := s.TotalAmount

	for i := 0; i < 100; i++ {
		ApplyPricing(s)
	}
	assert.True(t, first.Equal(s.TotalAmount))
}
