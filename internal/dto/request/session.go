package request

import "time"

type CreateSessionRequest struct {
	TutorID         string    `json:"tutor_id" validate:"required,uuid"`
	StudentID       string    `json:"student_id" validate:"required,uuid"`
	Subject         string    `json:"subject" validate:"omitempty,max=255"`
	ScheduledStart  time.Time `json:"scheduled_start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=30,max=720"`
	Location        string    `json:"location" validate:"omitempty,max=255"`
	Notes           *string   `json:"notes"`
	HourlyRate      string    `json:"hourly_rate" validate:"omitempty,numeric"`
}

// ScheduleSessionRequest is the simplified booking form for one tutor.
type ScheduleSessionRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
	Method    string `json:"method" validate:"required,oneof=online offline"`
	Note      string `json:"note" validate:"omitempty,max=1000"`
	Subject   string `json:"subject" validate:"omitempty,max=255"`
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
}

type UpdateSessionRequest struct {
	Subject         string    `json:"subject" validate:"required,max=255"`
	ScheduledStart  time.Time `json:"scheduled_start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=30,max=720"`
	HourlyRate      string    `json:"hourly_rate" validate:"required,numeric"`
	Location        string    `json:"location" validate:"omitempty,max=255"`
	Notes           *string   `json:"notes"`
	Version         int       `json:"version" validate:"omitempty,min=1"`
}

type RescheduleSessionRequest struct {
	ScheduledStart  time.Time `json:"scheduled_start" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"omitempty,min=30,max=720"`
}
