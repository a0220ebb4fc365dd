package entity

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tutor is the read-only projection the scheduler needs from the tutor profile.
type Tutor struct {
	ID         uuid.UUID       `db:"id"`
	FullName   string          `db:"full_name"`
	HourlyRate decimal.Decimal `db:"hourly_rate"`
}
