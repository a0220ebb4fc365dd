package scheduling

import (
	"github.com/shopspring/decimal"

	"tutoring-scheduler/internal/data/entity"
)

var minutesPerHour = decimal.NewFromInt(60)

// TotalAmount returns rate × minutes / 60 rounded half-up to 2 decimal places.
// Inputs are non-negative so half-away-from-zero equals half-up.
func TotalAmount(hourlyRate decimal.Decimal, durationMinutes int) decimal.Decimal {
	return hourlyRate.
		Mul(decimal.NewFromInt(int64(durationMinutes))).
		DivRound(minutesPerHour, 2)
}

// ApplyPricing recomputes TotalAmount from the session's rate and duration.
// Every code path that changes either input must go through here.
func ApplyPricing(s *entity.Session) {
	s.TotalAmount = TotalAmount(s.HourlyRate, s.DurationMinutes)
}

// Round2 rounds half-up to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
