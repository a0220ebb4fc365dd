package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/internal/scheduling"
	"tutoring-scheduler/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	bookingDateLayout = "2006-01-02"
	bookingTimeLayout = "15:04"

	// the simplified booking flow always books one hour
	formBookingDurationMinutes = 60

	MethodOnline  = "online"
	MethodOffline = "offline"
)

// BookingRequest is the simplified booking form.
type BookingRequest struct {
	Date      string
	Time      string
	Method    string
	Note      string
	Subject   string
	StudentID *uuid.UUID
}

// BookingResolver turns a BookingRequest into an unsaved session.
type BookingResolver struct {
	students repository.StudentRepository
	cfg      utils.BookingConfig
	log      *zap.Logger
}

func NewBookingResolver(students repository.StudentRepository, cfg utils.BookingConfig, log *zap.Logger) *BookingResolver {
	return &BookingResolver{
		students: students,
		cfg:      cfg,
		log:      log.With(zap.String("component", "booking_resolver")),
	}
}

func (r *BookingResolver) Resolve(ctx context.Context, req BookingRequest, tutor *entity.Tutor) (*entity.Session, error) {
	if tutor == nil {
		return nil, scheduling.NewValidationError("tutor", "This field is required")
	}

	start, err := r.scheduledStart(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	studentID, err := r.resolveStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = r.cfg.DefaultSubject
	}

	rate := tutor.HourlyRate
	if rate.IsZero() {
		rate = r.cfg.FallbackHourlyRate
	}

	session := &entity.Session{
		TutorID:         tutor.ID,
		StudentID:       studentID,
		Subject:         subject,
		ScheduledStart:  start,
		DurationMinutes: formBookingDurationMinutes,
		Status:          entity.SessionStatusScheduled,
		Location:        r.location(req.Method),
		HourlyRate:      rate,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		session.Notes = &note
	}
	scheduling.ApplyPricing(session)

	return session, nil
}

func (r *BookingResolver) scheduledStart(date, clock string) (time.Time, error) {
	verr := &scheduling.ValidationError{Fields: map[string]string{}}
	if _, err := time.Parse(bookingDateLayout, date); err != nil {
		verr.Fields["date"] = fmt.Sprintf("Must match layout %s", bookingDateLayout)
	}
	if _, err := time.Parse(bookingTimeLayout, clock); err != nil {
		verr.Fields["time"] = fmt.Sprintf("Must match layout %s", bookingTimeLayout)
	}
	if len(verr.Fields) > 0 {
		return time.Time{}, verr
	}

	loc := r.cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	start, err := time.ParseInLocation(bookingDateLayout+" "+bookingTimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, scheduling.NewValidationError("time", err.Error())
	}
	return start, nil
}

func (r *BookingResolver) resolveStudent(ctx context.Context, id *uuid.UUID) (uuid.UUID, error) {
	if id != nil {
		student, err := r.students.FindByID(ctx, *id)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to find student: %w", err)
		}
		if student == nil {
			return uuid.Nil, &scheduling.NotFoundError{Resource: "student", ID: id.String()}
		}
		return student.ID, nil
	}

	if !r.cfg.AllowStudentFallback {
		return uuid.Nil, scheduling.NewValidationError("student_id", "This field is required")
	}

	student, err := r.students.FirstAvailable(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to find fallback student: %w", err)
	}
	if student == nil {
		return uuid.Nil, fmt.Errorf("%w: no students registered", scheduling.ErrEmptyCollection)
	}

	r.log.Warn("Booking without student id, using first available student",
		zap.String("student_id", student.ID.String()))

	return student.ID, nil
}

func (r *BookingResolver) location(method string) string {
	if strings.EqualFold(strings.TrimSpace(method), MethodOnline) {
		return r.cfg.OnlineLocationLabel
	}
	return r.cfg.OfflineLocationLabel
}
