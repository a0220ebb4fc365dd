package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/internal/scheduling"
	"tutoring-scheduler/pkg/lock"
	"tutoring-scheduler/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const minDurationMinutes = 30

// amounts are stored as NUMERIC(12, 2)
var (
	maxAmount = decimal.New(1, 10)
	cent      = decimal.New(1, -2)
)

type SessionService interface {
	// Booking
	Create(ctx context.Context, session *entity.Session) (*entity.Session, error)
	CreateFromRequest(ctx context.Context, req BookingRequest, tutor *entity.Tutor) (*entity.Session, error)
	ScheduleFromForm(ctx context.Context, tutorID uuid.UUID, req BookingRequest) (*entity.Session, error)

	// Queries
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	List(ctx context.Context, filter SessionFilter) ([]*entity.Session, error)
	ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error)
	ListByStatus(ctx context.Context, status entity.SessionStatus) ([]*entity.Session, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.Session, error)
	UpcomingForTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error)
	UpcomingForStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error)
	CompletedForTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error)
	CompletedForStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error)
	CountByTutorAndStatus(ctx context.Context, tutorID uuid.UUID, status entity.SessionStatus) (int64, error)
	CountByStudentAndStatus(ctx context.Context, studentID uuid.UUID, status entity.SessionStatus) (int64, error)
	HasConflict(ctx context.Context, tutorID uuid.UUID, start, end time.Time) (bool, error)
	CancellationFee(ctx context.Context, id uuid.UUID) (*CancellationQuote, error)

	// Changes
	Update(ctx context.Context, id uuid.UUID, changes SessionChanges) (*entity.Session, error)
	Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) (*entity.Session, error)
	Confirm(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	Complete(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	Cancel(ctx context.Context, id uuid.UUID) (*entity.Session, error)

	// Admin
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionFilter narrows List. Zero values match everything; From/To bound
// the scheduled start inclusively.
type SessionFilter struct {
	TutorID   *uuid.UUID
	StudentID *uuid.UUID
	Status    *entity.SessionStatus
	From      *time.Time
	To        *time.Time
}

// SessionChanges replaces every mutable field of a session.
type SessionChanges struct {
	Subject         string
	ScheduledStart  time.Time
	DurationMinutes int
	HourlyRate      decimal.Decimal
	Location        string
	Notes           *string
	// Version, when non-zero, must match the stored version.
	Version int
}

type CancellationQuote struct {
	Session    *entity.Session
	HoursUntil int64
	Fee        decimal.Decimal
}

type sessionService struct {
	repo     *repository.Repository
	resolver *BookingResolver
	locker   lock.Locker
	cfg      utils.BookingConfig
	now      func() time.Time
	log      *zap.Logger
}

func NewSessionService(repo *repository.Repository, locker lock.Locker, cfg utils.BookingConfig, log *zap.Logger) SessionService {
	return &sessionService{
		repo:     repo,
		resolver: NewBookingResolver(repo.Student, cfg, log),
		locker:   locker,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With(zap.String("service", "session")),
	}
}

// ==================== BOOKING ====================

func (s *sessionService) Create(ctx context.Context, session *entity.Session) (*entity.Session, error) {
	if session == nil {
		return nil, scheduling.NewValidationError("session", "This field is required")
	}

	candidate := session.Clone()
	candidate.ID = uuid.Nil
	candidate.Version = 0
	candidate.Status = entity.SessionStatusScheduled
	candidate.TotalAmount = decimal.Zero
	candidate.Subject = strings.TrimSpace(candidate.Subject)
	if candidate.Subject == "" {
		candidate.Subject = s.cfg.DefaultSubject
	}
	if candidate.DurationMinutes == 0 {
		candidate.DurationMinutes = s.cfg.DefaultDurationMinutes
	}

	if err := validateSession(candidate); err != nil {
		s.log.Warn("Create session validation failed", zap.Error(err))
		return nil, err
	}

	tutor, err := s.repo.Tutor.FindByID(ctx, candidate.TutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor: %w", err)
	}
	if tutor == nil {
		return nil, &scheduling.NotFoundError{Resource: "tutor", ID: candidate.TutorID.String()}
	}

	student, err := s.repo.Student.FindByID(ctx, candidate.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find student: %w", err)
	}
	if student == nil {
		return nil, &scheduling.NotFoundError{Resource: "student", ID: candidate.StudentID.String()}
	}

	// rate is copied from the tutor at booking time unless the caller set one
	if candidate.HourlyRate.IsZero() {
		candidate.HourlyRate = tutor.HourlyRate
		if candidate.HourlyRate.IsZero() {
			candidate.HourlyRate = s.cfg.FallbackHourlyRate
		}
	}
	scheduling.ApplyPricing(candidate)

	// the rate may have come from the tutor or the fallback
	if err := validateSession(candidate); err != nil {
		s.log.Warn("Create session pricing rejected", zap.Error(err))
		return nil, err
	}

	if err := s.insertWithoutConflict(ctx, candidate); err != nil {
		return nil, err
	}

	s.log.Info("Session created",
		zap.String("session_id", candidate.ID.String()),
		zap.String("tutor_id", candidate.TutorID.String()),
		zap.String("student_id", candidate.StudentID.String()),
		zap.Time("scheduled_start", candidate.ScheduledStart),
		zap.String("total_amount", candidate.TotalAmount.String()),
	)

	return candidate, nil
}

func (s *sessionService) CreateFromRequest(ctx context.Context, req BookingRequest, tutor *entity.Tutor) (*entity.Session, error) {
	candidate, err := s.resolver.Resolve(ctx, req, tutor)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, candidate)
}

func (s *sessionService) ScheduleFromForm(ctx context.Context, tutorID uuid.UUID, req BookingRequest) (*entity.Session, error) {
	tutor, err := s.repo.Tutor.FindByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find tutor: %w", err)
	}
	if tutor == nil {
		return nil, &scheduling.NotFoundError{Resource: "tutor", ID: tutorID.String()}
	}
	return s.CreateFromRequest(ctx, req, tutor)
}

// insertWithoutConflict runs check-then-insert while holding the tutor lock.
func (s *sessionService) insertWithoutConflict(ctx context.Context, candidate *entity.Session) error {
	release, err := s.lockTutor(ctx, candidate.TutorID)
	if err != nil {
		return err
	}
	defer release()

	existing, err := s.repo.Session.ListActiveConflicting(ctx, candidate.TutorID, candidate.ScheduledStart, candidate.End())
	if err != nil {
		return fmt.Errorf("failed to check conflicts: %w", err)
	}
	if conflicts := scheduling.DetectConflicts(candidate.TutorID, candidate.ScheduledStart, candidate.End(), existing); len(conflicts) > 0 {
		s.log.Warn("Session conflicts with existing booking",
			zap.String("tutor_id", candidate.TutorID.String()),
			zap.Time("scheduled_start", candidate.ScheduledStart),
			zap.Int("conflicts", len(conflicts)))
		return &scheduling.ConflictError{Conflicts: conflicts}
	}

	if err := s.repo.Session.Save(ctx, candidate); err != nil {
		return s.translateStoreError(err, candidate.ID)
	}
	return nil
}

// ==================== QUERIES ====================

func (s *sessionService) GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	session, err := s.repo.Session.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, &scheduling.NotFoundError{Resource: "session", ID: id.String()}
	}
	return session, nil
}

func (s *sessionService) List(ctx context.Context, filter SessionFilter) ([]*entity.Session, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, scheduling.NewValidationError("status", "Must be one of: SCHEDULED, CONFIRMED, COMPLETED, CANCELLED")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, scheduling.NewValidationError("to", "Must not be before from")
	}

	var (
		sessions []*entity.Session
		err      error
	)
	// start from the narrowest store query, the rest is filtered here
	switch {
	case filter.TutorID != nil:
		sessions, err = s.repo.Session.ListByTutor(ctx, *filter.TutorID)
	case filter.StudentID != nil:
		sessions, err = s.repo.Session.ListByStudent(ctx, *filter.StudentID)
	case filter.From != nil && filter.To != nil:
		sessions, err = s.repo.Session.ListByDateRange(ctx, *filter.From, *filter.To)
	case filter.Status != nil:
		sessions, err = s.repo.Session.ListByStatus(ctx, *filter.Status)
	default:
		sessions, err = s.repo.Session.List(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := sessions[:0]
	for _, session := range sessions {
		if filter.matches(session) {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f SessionFilter) matches(s *entity.Session) bool {
	if f.TutorID != nil && s.TutorID != *f.TutorID {
		return false
	}
	if f.StudentID != nil && s.StudentID != *f.StudentID {
		return false
	}
	if f.Status != nil && s.Status != *f.Status {
		return false
	}
	if f.From != nil && s.ScheduledStart.Before(*f.From) {
		return false
	}
	if f.To != nil && s.ScheduledStart.After(*f.To) {
		return false
	}
	return true
}

func (s *sessionService) ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error) {
	return s.List(ctx, SessionFilter{TutorID: &tutorID})
}

func (s *sessionService) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error) {
	return s.List(ctx, SessionFilter{StudentID: &studentID})
}

func (s *sessionService) ListByStatus(ctx context.Context, status entity.SessionStatus) ([]*entity.Session, error) {
	return s.List(ctx, SessionFilter{Status: &status})
}

func (s *sessionService) ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.Session, error) {
	return s.List(ctx, SessionFilter{From: &start, To: &end})
}

func (s *sessionService) UpcomingForTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := s.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return upcoming(sessions, s.now()), nil
}

func (s *sessionService) UpcomingForStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := s.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return upcoming(sessions, s.now()), nil
}

func (s *sessionService) CompletedForTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := s.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return completed(sessions), nil
}

func (s *sessionService) CompletedForStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error) {
	sessions, err := s.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return completed(sessions), nil
}

// upcoming keeps active sessions starting after now, earliest first.
func upcoming(sessions []*entity.Session, now time.Time) []*entity.Session {
	var out []*entity.Session
	for _, session := range sessions {
		if session.Status.IsActive() && session.ScheduledStart.After(now) {
			out = append(out, session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledStart.Before(out[j].ScheduledStart)
	})
	return out
}

// completed keeps completed sessions, most recent first.
func completed(sessions []*entity.Session) []*entity.Session {
	var out []*entity.Session
	for _, session := range sessions {
		if session.Status == entity.SessionStatusCompleted {
			out = append(out, session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledStart.After(out[j].ScheduledStart)
	})
	return out
}

func (s *sessionService) CountByTutorAndStatus(ctx context.Context, tutorID uuid.UUID, status entity.SessionStatus) (int64, error) {
	if !status.IsValid() {
		return 0, scheduling.NewValidationError("status", "Must be one of: SCHEDULED, CONFIRMED, COMPLETED, CANCELLED")
	}
	count, err := s.repo.Session.CountByTutorAndStatus(ctx, tutorID, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (s *sessionService) CountByStudentAndStatus(ctx context.Context, studentID uuid.UUID, status entity.SessionStatus) (int64, error) {
	if !status.IsValid() {
		return 0, scheduling.NewValidationError("status", "Must be one of: SCHEDULED, CONFIRMED, COMPLETED, CANCELLED")
	}
	count, err := s.repo.Session.CountByStudentAndStatus(ctx, studentID, status)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (s *sessionService) HasConflict(ctx context.Context, tutorID uuid.UUID, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, scheduling.NewValidationError("end", "Must be after start")
	}

	existing, err := s.repo.Session.ListActiveConflicting(ctx, tutorID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return scheduling.HasConflict(tutorID, start, end, existing), nil
}

func (s *sessionService) CancellationFee(ctx context.Context, id uuid.UUID) (*CancellationQuote, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &CancellationQuote{
		Session:    session,
		HoursUntil: scheduling.HoursUntil(session.ScheduledStart, now),
		Fee:        scheduling.CancellationFee(session, now),
	}, nil
}

// ==================== CHANGES ====================

// Update replaces the mutable fields. It does not look for conflicts with
// other bookings; the store still rejects an overlapping active window.
func (s *sessionService) Update(ctx context.Context, id uuid.UUID, changes SessionChanges) (*entity.Session, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scheduling.EnsureMutable(session, scheduling.TriggerUpdate); err != nil {
		return nil, err
	}
	if changes.Version != 0 && changes.Version != session.Version {
		return nil, fmt.Errorf("%w: session %s is at version %d", scheduling.ErrConcurrency, id, session.Version)
	}

	session.Subject = strings.TrimSpace(changes.Subject)
	session.ScheduledStart = changes.ScheduledStart
	session.DurationMinutes = changes.DurationMinutes
	session.HourlyRate = changes.HourlyRate
	session.Location = changes.Location
	session.Notes = changes.Notes
	scheduling.ApplyPricing(session)

	if err := validateSession(session); err != nil {
		s.log.Warn("Update session validation failed", zap.String("session_id", id.String()), zap.Error(err))
		return nil, err
	}

	if err := s.repo.Session.Save(ctx, session); err != nil {
		return nil, s.translateStoreError(err, id)
	}

	s.log.Info("Session updated",
		zap.String("session_id", id.String()),
		zap.Int("version", session.Version),
		zap.String("total_amount", session.TotalAmount.String()))

	return session, nil
}

func (s *sessionService) Reschedule(ctx context.Context, id uuid.UUID, start time.Time, durationMinutes int) (*entity.Session, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scheduling.EnsureMutable(session, scheduling.TriggerReschedule); err != nil {
		return nil, err
	}

	if durationMinutes == 0 {
		durationMinutes = session.DurationMinutes
	}
	session.ScheduledStart = start
	session.DurationMinutes = durationMinutes
	scheduling.ApplyPricing(session)

	if err := validateSession(session); err != nil {
		return nil, err
	}

	release, err := s.lockTutor(ctx, session.TutorID)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.repo.Session.ListActiveConflicting(ctx, session.TutorID, session.ScheduledStart, session.End())
	if err != nil {
		return nil, fmt.Errorf("failed to check conflicts: %w", err)
	}
	if conflicts := scheduling.DetectConflicts(session.TutorID, session.ScheduledStart, session.End(), existing, session.ID); len(conflicts) > 0 {
		return nil, &scheduling.ConflictError{Conflicts: conflicts}
	}

	if err := s.repo.Session.Save(ctx, session); err != nil {
		return nil, s.translateStoreError(err, id)
	}

	s.log.Info("Session rescheduled",
		zap.String("session_id", id.String()),
		zap.Time("scheduled_start", session.ScheduledStart),
		zap.Int("duration_minutes", session.DurationMinutes))

	return session, nil
}

func (s *sessionService) Confirm(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return s.transition(ctx, id, scheduling.TriggerConfirm)
}

func (s *sessionService) Complete(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return s.transition(ctx, id, scheduling.TriggerComplete)
}

func (s *sessionService) Cancel(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	return s.transition(ctx, id, scheduling.TriggerCancel)
}

func (s *sessionService) transition(ctx context.Context, id uuid.UUID, trigger scheduling.Trigger) (*entity.Session, error) {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := session.Status
	if err := scheduling.Apply(session, trigger); err != nil {
		s.log.Warn("Rejected status transition",
			zap.String("session_id", id.String()),
			zap.String("status", string(from)),
			zap.String("trigger", string(trigger)))
		return nil, err
	}

	if err := s.repo.Session.Save(ctx, session); err != nil {
		return nil, s.translateStoreError(err, id)
	}

	s.log.Info("Session status changed",
		zap.String("session_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(session.Status)))

	return session, nil
}

// ==================== ADMIN ====================

func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Session.Delete(ctx, id); err != nil {
		return s.translateStoreError(err, id)
	}

	s.log.Info("Session deleted by admin", zap.String("session_id", id.String()))
	return nil
}

// ==================== HELPERS ====================

// lockTutor serializes bookings per tutor. The returned func releases the lock.
func (s *sessionService) lockTutor(ctx context.Context, tutorID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "tutor:" + tutorID.String()
	token, ok, err := lock.Acquire(ctx, s.locker, key, s.cfg.LockTTL, s.cfg.LockWait)
	if err != nil {
		return nil, fmt.Errorf("failed to lock tutor %s: %w", tutorID, err)
	}
	if !ok {
		s.log.Warn("Timed out waiting for tutor lock", zap.String("tutor_id", tutorID.String()))
		return nil, fmt.Errorf("%w: tutor %s is busy, retry later", scheduling.ErrConcurrency, tutorID)
	}

	return func() {
		// the request context may already be done, release regardless
		if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("Failed to release tutor lock", zap.String("tutor_id", tutorID.String()), zap.Error(err))
		}
	}, nil
}

func (s *sessionService) translateStoreError(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, repository.ErrOverlap):
		return &scheduling.ConflictError{}
	case errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%w: session %s changed, reload and retry", scheduling.ErrConcurrency, id)
	case errors.Is(err, repository.ErrMissingReference):
		return fmt.Errorf("%w: %v", scheduling.ErrIntegrity, err)
	case errors.Is(err, repository.ErrNotFound):
		return &scheduling.NotFoundError{Resource: "session", ID: id.String()}
	}

	s.log.Error("Session store failure", zap.String("session_id", id.String()), zap.Error(err))
	return fmt.Errorf("failed to save session: %w", err)
}

func validateSession(s *entity.Session) error {
	verr := &scheduling.ValidationError{Fields: map[string]string{}}

	if s.TutorID == uuid.Nil {
		verr.Fields["tutor_id"] = "This field is required"
	}
	if s.StudentID == uuid.Nil {
		verr.Fields["student_id"] = "This field is required"
	}
	if s.Subject == "" {
		verr.Fields["subject"] = "This field is required"
	}
	if s.ScheduledStart.IsZero() {
		verr.Fields["scheduled_start"] = "This field is required"
	}
	if s.DurationMinutes < minDurationMinutes {
		verr.Fields["duration_minutes"] = fmt.Sprintf("Minimum is %d", minDurationMinutes)
	}
	switch {
	case s.HourlyRate.IsNegative():
		verr.Fields["hourly_rate"] = "Must not be negative"
	case !s.HourlyRate.Equal(s.HourlyRate.Round(2)):
		verr.Fields["hourly_rate"] = "Must have at most 2 decimal places"
	case s.HourlyRate.GreaterThanOrEqual(maxAmount):
		verr.Fields["hourly_rate"] = "Maximum is " + maxAmount.Sub(cent).String()
	case s.TotalAmount.GreaterThanOrEqual(maxAmount):
		verr.Fields["duration_minutes"] = "Total amount exceeds " + maxAmount.Sub(cent).String()
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
