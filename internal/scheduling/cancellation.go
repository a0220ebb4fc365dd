package scheduling

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"tutoring-scheduler/internal/data/entity"
)

const FreeCancellationHours = 12

var lateCancellationRate = decimal.RequireFromString("0.5")

// HoursUntil is the whole number of hours from now until start, floored.
func HoursUntil(start, now time.Time) int64 {
	return int64(math.Floor(start.Sub(now).Hours()))
}

// CancellationFee is advisory only; it never changes the session.
//
//	hoursUntil >= 12     -> 0
//	0 < hoursUntil < 12  -> 50% of total
//	hoursUntil <= 0      -> full total
func CancellationFee(s *entity.Session, now time.Time) decimal.Decimal {
	hours := HoursUntil(s.ScheduledStart, now)
	switch {
	case hours >= FreeCancellationHours:
		return decimal.Zero
	case hours > 0:
		return Round2(s.TotalAmount.Mul(lateCancellationRate))
	default:
		return s.TotalAmount
	}
}
