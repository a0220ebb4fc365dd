package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "SCHEDULED"
	SessionStatusConfirmed SessionStatus = "CONFIRMED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// IsActive reports whether sessions in this status block the tutor's calendar.
func (s SessionStatus) IsActive() bool {
	return s == SessionStatusScheduled || s == SessionStatusConfirmed
}

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusConfirmed, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

type Session struct {
	Base
	TutorID         uuid.UUID       `db:"tutor_id"`
	StudentID       uuid.UUID       `db:"student_id"`
	Subject         string          `db:"subject"`
	ScheduledStart  time.Time       `db:"scheduled_start"`
	DurationMinutes int             `db:"duration_minutes"`
	Status          SessionStatus   `db:"status"`
	Location        string          `db:"location"`
	Notes           *string         `db:"notes"`
	HourlyRate      decimal.Decimal `db:"hourly_rate"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
}

// End returns the exclusive end of the session interval.
func (s *Session) End() time.Time {
	return s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Clone returns a copy that shares no pointers with s.
func (s *Session) Clone() *Session {
	c := *s
	if s.Notes != nil {
		notes := *s.Notes
		c.Notes = &notes
	}
	return &c
}
