package response

import (
	"time"

	"tutoring-scheduler/internal/data/entity"

	"github.com/google/uuid"
)

type SessionResponse struct {
	ID              uuid.UUID `json:"id"`
	TutorID         uuid.UUID `json:"tutor_id"`
	StudentID       uuid.UUID `json:"student_id"`
	Subject         string    `json:"subject"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	ScheduledEnd    time.Time `json:"scheduled_end"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	Location        string    `json:"location"`
	Notes           *string   `json:"notes,omitempty"`
	HourlyRate      string    `json:"hourly_rate"`
	TotalAmount     string    `json:"total_amount"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CancellationFeeResponse struct {
	SessionID       uuid.UUID `json:"session_id"`
	Status          string    `json:"status"`
	HoursUntilStart int64     `json:"hours_until_start"`
	TotalAmount     string    `json:"total_amount"`
	CancellationFee string    `json:"cancellation_fee"`
}

type ConflictCheckResponse struct {
	TutorID     uuid.UUID `json:"tutor_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	HasConflict bool      `json:"has_conflict"`
}

type SessionCountResponse struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func SessionToResponse(s *entity.Session) SessionResponse {
	return SessionResponse{
		ID:              s.ID,
		TutorID:         s.TutorID,
		StudentID:       s.StudentID,
		Subject:         s.Subject,
		ScheduledStart:  s.ScheduledStart,
		ScheduledEnd:    s.End(),
		DurationMinutes: s.DurationMinutes,
		Status:          string(s.Status),
		Location:        s.Location,
		Notes:           s.Notes,
		HourlyRate:      s.HourlyRate.StringFixed(2),
		TotalAmount:     s.TotalAmount.StringFixed(2),
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func SessionsToResponse(sessions []*entity.Session) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionToResponse(s))
	}
	return out
}
