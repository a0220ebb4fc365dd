package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/internal/scheduling"
	"tutoring-scheduler/pkg/lock"
	"tutoring-scheduler/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type SessionServiceSuite struct {
	suite.Suite

	ctx     context.Context
	svc     *sessionService
	locker  *lock.LocalLock
	tutor   entity.Tutor
	student entity.Student
	now     time.Time
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.tutor = entity.Tutor{ID: uuid.New(), FullName: "Minh", HourlyRate: decimal.NewFromInt(200000)}
	s.student = entity.Student{ID: uuid.New(), FullName: "Lan"}
	s.now = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	log := zap.NewNop()
	repo := &repository.Repository{
		Session: repository.NewMemorySessionRepository(log),
		Tutor:   repository.NewMemoryTutorRepository(s.tutor),
		Student: repository.NewMemoryStudentRepository(s.student),
	}
	s.locker = lock.NewLocalLock()

	cfg := utils.DefaultBookingConfig()
	cfg.LockWait = 2 * time.Second
	s.svc = NewSessionService(repo, s.locker, cfg, log).(*sessionService)
	s.svc.now = func() time.Time { return s.now }
}

func (s *SessionServiceSuite) at(day, hour, minute int) time.Time {
	return time.Date(2025, 1, day, hour, minute, 0, 0, time.UTC)
}

func (s *SessionServiceSuite) book(start time.Time, minutes int) *entity.Session {
	created, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:         s.tutor.ID,
		StudentID:       s.student.ID,
		Subject:         "Mathematics",
		ScheduledStart:  start,
		DurationMinutes: minutes,
	})
	s.Require().NoError(err)
	return created
}

func (s *SessionServiceSuite) assertAmount(want int64, got decimal.Decimal) {
	s.True(decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got.String())
}

func (s *SessionServiceSuite) TestScheduleFromForm() {
	session, err := s.svc.ScheduleFromForm(s.ctx, s.tutor.ID, BookingRequest{
		Date:      "2025-01-10",
		Time:      "10:00",
		Method:    "online",
		StudentID: &s.student.ID,
	})
	s.Require().NoError(err)

	s.NotEqual(uuid.Nil, session.ID)
	s.Equal(1, session.Version)
	s.False(session.CreatedAt.IsZero())
	s.Equal(entity.SessionStatusScheduled, session.Status)
	s.Equal(s.svc.cfg.OnlineLocationLabel, session.Location)
	s.assertAmount(200000, session.TotalAmount)

	stored, err := s.svc.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, stored.ID)
}

func (s *SessionServiceSuite) TestScheduleFromForm_UnknownTutor() {
	_, err := s.svc.ScheduleFromForm(s.ctx, uuid.New(), BookingRequest{
		Date: "2025-01-10", Time: "10:00", Method: "online", StudentID: &s.student.ID,
	})
	var notFound *scheduling.NotFoundError
	s.Require().ErrorAs(err, &notFound)
	s.Equal("tutor", notFound.Resource)
}

func (s *SessionServiceSuite) TestCreate_OverlapIsConflict() {
	existing := s.book(s.at(10, 10, 0), 60)

	_, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:         s.tutor.ID,
		StudentID:       s.student.ID,
		Subject:         "Mathematics",
		ScheduledStart:  s.at(10, 10, 30),
		DurationMinutes: 60,
	})

	var conflict *scheduling.ConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Require().Len(conflict.Conflicts, 1)
	s.Equal(existing.ID, conflict.Conflicts[0].ID)
	s.ErrorIs(err, scheduling.ErrConflict)
}

func (s *SessionServiceSuite) TestCreate_AdjacentAndInactiveDoNotConflict() {
	first := s.book(s.at(10, 10, 0), 60)
	s.book(s.at(10, 11, 0), 60)

	_, err := s.svc.Cancel(s.ctx, first.ID)
	s.Require().NoError(err)
	s.book(s.at(10, 10, 0), 60)
}

func (s *SessionServiceSuite) TestCreate_Validation() {
	_, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:         s.tutor.ID,
		StudentID:       s.student.ID,
		ScheduledStart:  s.at(10, 10, 0),
		DurationMinutes: 15,
	})

	var verr *scheduling.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "duration_minutes")

	sessions, err := s.svc.List(s.ctx, SessionFilter{})
	s.Require().NoError(err)
	s.Empty(sessions, "failed create persists nothing")
}

func (s *SessionServiceSuite) TestCreate_RejectsRatesTheStoreCannotHold() {
	tests := []struct {
		name string
		rate string
	}{
		{"sub-cent", "100.005"},
		{"too large", "10000000000"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Create(s.ctx, &entity.Session{
				TutorID:         s.tutor.ID,
				StudentID:       s.student.ID,
				ScheduledStart:  s.at(10, 10, 0),
				DurationMinutes: 90,
				HourlyRate:      decimal.RequireFromString(tt.rate),
			})

			var verr *scheduling.ValidationError
			s.Require().ErrorAs(err, &verr)
			s.Contains(verr.Fields, "hourly_rate")
		})
	}

	_, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:         s.tutor.ID,
		StudentID:       s.student.ID,
		ScheduledStart:  s.at(10, 10, 0),
		DurationMinutes: 720,
		HourlyRate:      decimal.RequireFromString("9999999999.99"),
	})
	var verr *scheduling.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "duration_minutes")

	sessions, err := s.svc.List(s.ctx, SessionFilter{})
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *SessionServiceSuite) TestCreate_TotalMatchesStoredRate() {
	created, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:         s.tutor.ID,
		StudentID:       s.student.ID,
		ScheduledStart:  s.at(10, 10, 0),
		DurationMinutes: 90,
		HourlyRate:      decimal.RequireFromString("100.01"),
	})
	s.Require().NoError(err)

	// what a NUMERIC(12, 2) column would hand back
	reloaded := created.HourlyRate.Round(2)
	s.True(scheduling.TotalAmount(reloaded, 90).Equal(created.TotalAmount), created.TotalAmount.String())
}

func (s *SessionServiceSuite) TestCreate_DefaultsAndUnknownStudent() {
	created, err := s.svc.Create(s.ctx, &entity.Session{
		TutorID:        s.tutor.ID,
		StudentID:      s.student.ID,
		ScheduledStart: s.at(10, 10, 0),
		Status:         entity.SessionStatusCompleted,
	})
	s.Require().NoError(err)
	s.Equal("Mathematics", created.Subject)
	s.Equal(60, created.DurationMinutes)
	s.Equal(entity.SessionStatusScheduled, created.Status)
	s.assertAmount(200000, created.HourlyRate)

	_, err = s.svc.Create(s.ctx, &entity.Session{
		TutorID:        s.tutor.ID,
		StudentID:      uuid.New(),
		ScheduledStart: s.at(11, 10, 0),
	})
	s.ErrorIs(err, scheduling.ErrNotFound)
}

func (s *SessionServiceSuite) TestTransitions() {
	session := s.book(s.at(10, 10, 0), 60)

	_, err := s.svc.Complete(s.ctx, session.ID)
	var stateErr *scheduling.InvalidStateError
	s.Require().ErrorAs(err, &stateErr)
	s.Equal(entity.SessionStatusScheduled, stateErr.Current)
	s.Equal(scheduling.TriggerComplete, stateErr.Trigger)

	confirmed, err := s.svc.Confirm(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(entity.SessionStatusConfirmed, confirmed.Status)
	s.Equal(2, confirmed.Version)

	completed, err := s.svc.Complete(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(entity.SessionStatusCompleted, completed.Status)

	_, err = s.svc.Cancel(s.ctx, session.ID)
	s.ErrorIs(err, scheduling.ErrConflict)

	_, err = s.svc.Confirm(s.ctx, uuid.New())
	s.ErrorIs(err, scheduling.ErrNotFound)
}

func (s *SessionServiceSuite) TestCancellationFee() {
	session := s.book(s.at(10, 10, 0), 30) // 100000

	tests := []struct {
		name  string
		now   time.Time
		fee   int64
		hours int64
	}{
		{"15 hours before", s.at(9, 19, 0), 0, 15},
		{"exactly 12 hours before", s.at(9, 22, 0), 0, 12},
		{"10 hours before", s.at(10, 0, 0), 50000, 10},
		{"after start", s.at(10, 10, 30), 100000, -1},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.now = tt.now
			quote, err := s.svc.CancellationFee(s.ctx, session.ID)
			s.Require().NoError(err)
			s.assertAmount(tt.fee, quote.Fee)
			s.Equal(tt.hours, quote.HoursUntil)
		})
	}

	stored, err := s.svc.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(entity.SessionStatusScheduled, stored.Status, "quoting a fee never cancels")
}

func (s *SessionServiceSuite) TestUpdate_RecomputesTotal() {
	session := s.book(s.at(10, 10, 0), 60)

	updated, err := s.svc.Update(s.ctx, session.ID, SessionChanges{
		Subject:         "Chemistry",
		ScheduledStart:  session.ScheduledStart,
		DurationMinutes: 90,
		HourlyRate:      session.HourlyRate,
		Location:        "Library",
	})
	s.Require().NoError(err)
	s.Equal("Chemistry", updated.Subject)
	s.Equal("Library", updated.Location)
	s.assertAmount(300000, updated.TotalAmount)

	stored, err := s.svc.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.assertAmount(300000, stored.TotalAmount)
}

func (s *SessionServiceSuite) TestUpdate_Rejections() {
	session := s.book(s.at(10, 10, 0), 60)

	_, err := s.svc.Update(s.ctx, session.ID, SessionChanges{
		Subject:         "Chemistry",
		ScheduledStart:  session.ScheduledStart,
		DurationMinutes: 60,
		HourlyRate:      session.HourlyRate,
		Version:         session.Version + 3,
	})
	s.ErrorIs(err, scheduling.ErrConcurrency)

	_, err = s.svc.Update(s.ctx, session.ID, SessionChanges{
		ScheduledStart:  session.ScheduledStart,
		DurationMinutes: 60,
		HourlyRate:      decimal.NewFromInt(-1),
	})
	var verr *scheduling.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields, "subject")
	s.Contains(verr.Fields, "hourly_rate")

	_, err = s.svc.Cancel(s.ctx, session.ID)
	s.Require().NoError(err)
	_, err = s.svc.Update(s.ctx, session.ID, SessionChanges{
		Subject:         "Chemistry",
		ScheduledStart:  session.ScheduledStart,
		DurationMinutes: 60,
		HourlyRate:      session.HourlyRate,
	})
	s.ErrorIs(err, scheduling.ErrConflict)
}

func (s *SessionServiceSuite) TestUpdate_RejectsSubCentRate() {
	session := s.book(s.at(10, 10, 0), 60)

	_, err := s.svc.Update(s.ctx, session.ID, SessionChanges{
		Subject:         "Chemistry",
		ScheduledStart:  session.ScheduledStart,
		DurationMinutes: 90,
		HourlyRate:      decimal.RequireFromString("100.005"),
	})
	var verr *scheduling.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("Must have at most 2 decimal places", verr.Fields["hourly_rate"])

	stored, err := s.svc.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.Version, stored.Version)
}

func (s *SessionServiceSuite) TestReschedule() {
	first := s.book(s.at(10, 10, 0), 60)
	second := s.book(s.at(10, 12, 0), 60)

	moved, err := s.svc.Reschedule(s.ctx, first.ID, s.at(10, 10, 30), 0)
	s.Require().NoError(err, "overlapping only itself is fine")
	s.Equal(s.at(10, 10, 30), moved.ScheduledStart)
	s.Equal(60, moved.DurationMinutes)

	_, err = s.svc.Reschedule(s.ctx, first.ID, s.at(10, 11, 30), 60)
	var conflict *scheduling.ConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal(second.ID, conflict.Conflicts[0].ID)

	longer, err := s.svc.Reschedule(s.ctx, first.ID, s.at(10, 9, 0), 120)
	s.Require().NoError(err)
	s.assertAmount(400000, longer.TotalAmount)
}

func (s *SessionServiceSuite) TestQueries() {
	past := s.book(s.at(1, 6, 0), 60)
	soon := s.book(s.at(3, 10, 0), 60)
	later := s.book(s.at(5, 10, 0), 60)
	done := s.book(s.at(2, 10, 0), 60)
	cancelled := s.book(s.at(4, 10, 0), 60)

	for _, id := range []uuid.UUID{past.ID, done.ID} {
		_, err := s.svc.Confirm(s.ctx, id)
		s.Require().NoError(err)
		_, err = s.svc.Complete(s.ctx, id)
		s.Require().NoError(err)
	}
	_, err := s.svc.Cancel(s.ctx, cancelled.ID)
	s.Require().NoError(err)

	upcoming, err := s.svc.UpcomingForTutor(s.ctx, s.tutor.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{soon.ID, later.ID}, ids(upcoming))

	upcoming, err = s.svc.UpcomingForStudent(s.ctx, s.student.ID)
	s.Require().NoError(err)
	s.Len(upcoming, 2)

	completed, err := s.svc.CompletedForStudent(s.ctx, s.student.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{done.ID, past.ID}, ids(completed))

	completed, err = s.svc.CompletedForTutor(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.Empty(completed)

	count, err := s.svc.CountByTutorAndStatus(s.ctx, s.tutor.ID, entity.SessionStatusCompleted)
	s.Require().NoError(err)
	s.EqualValues(2, count)

	count, err = s.svc.CountByStudentAndStatus(s.ctx, s.student.ID, entity.SessionStatusCancelled)
	s.Require().NoError(err)
	s.EqualValues(1, count)

	_, err = s.svc.CountByTutorAndStatus(s.ctx, s.tutor.ID, "ARCHIVED")
	s.ErrorIs(err, scheduling.ErrValidation)

	scheduled, err := s.svc.ListByStatus(s.ctx, entity.SessionStatusScheduled)
	s.Require().NoError(err)
	s.Len(scheduled, 2)

	inRange, err := s.svc.ListByDateRange(s.ctx, s.at(2, 10, 0), s.at(4, 10, 0))
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{done.ID, soon.ID, cancelled.ID}, ids(inRange), "bounds are inclusive")

	status := entity.SessionStatusScheduled
	from := s.at(4, 0, 0)
	filtered, err := s.svc.List(s.ctx, SessionFilter{TutorID: &s.tutor.ID, Status: &status, From: &from})
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{later.ID}, ids(filtered))
}

func (s *SessionServiceSuite) TestHasConflict() {
	s.book(s.at(10, 10, 0), 60)

	conflict, err := s.svc.HasConflict(s.ctx, s.tutor.ID, s.at(10, 10, 59), s.at(10, 12, 0))
	s.Require().NoError(err)
	s.True(conflict)

	conflict, err = s.svc.HasConflict(s.ctx, s.tutor.ID, s.at(10, 11, 0), s.at(10, 12, 0))
	s.Require().NoError(err)
	s.False(conflict)

	conflict, err = s.svc.HasConflict(s.ctx, uuid.New(), s.at(10, 10, 0), s.at(10, 11, 0))
	s.Require().NoError(err)
	s.False(conflict)

	_, err = s.svc.HasConflict(s.ctx, s.tutor.ID, s.at(10, 11, 0), s.at(10, 11, 0))
	s.ErrorIs(err, scheduling.ErrValidation)
}

func (s *SessionServiceSuite) TestDelete() {
	session := s.book(s.at(10, 10, 0), 60)

	s.Require().NoError(s.svc.Delete(s.ctx, session.ID))
	_, err := s.svc.GetByID(s.ctx, session.ID)
	s.ErrorIs(err, scheduling.ErrNotFound)

	s.ErrorIs(s.svc.Delete(s.ctx, session.ID), scheduling.ErrNotFound)
}

func (s *SessionServiceSuite) TestLockTimeoutIsConcurrencyError() {
	s.svc.cfg.LockWait = 20 * time.Millisecond
	_, ok, err := s.locker.Lock(s.ctx, "tutor:"+s.tutor.ID.String(), time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	_, err = s.svc.Create(s.ctx, &entity.Session{
		TutorID:        s.tutor.ID,
		StudentID:      s.student.ID,
		ScheduledStart: s.at(10, 10, 0),
	})
	s.ErrorIs(err, scheduling.ErrConcurrency)
}

func (s *SessionServiceSuite) TestConcurrentOverlappingBookings() {
	const attempts = 10

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.svc.Create(s.ctx, &entity.Session{
				TutorID:         s.tutor.ID,
				StudentID:       s.student.ID,
				ScheduledStart:  s.at(10, 10, i),
				DurationMinutes: 60,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, scheduling.ErrConflict):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(attempts-1, conflicts)
}

func (s *SessionServiceSuite) TestConcurrentTransitionsLoseWithConcurrencyError() {
	session := s.book(s.at(10, 10, 0), 60)

	// both transitions read version 1 before either writes
	barrier := &readBarrierRepository{SessionRepository: s.svc.repo.Session}
	barrier.reads.Add(2)
	s.svc.repo.Session = barrier

	var (
		wg        sync.WaitGroup
		confirmed error
		cancelled error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, confirmed = s.svc.Confirm(s.ctx, session.ID)
	}()
	go func() {
		defer wg.Done()
		_, cancelled = s.svc.Cancel(s.ctx, session.ID)
	}()
	wg.Wait()

	errs := []error{confirmed, cancelled}
	var lost int
	for _, err := range errs {
		if err != nil {
			s.ErrorIs(err, scheduling.ErrConcurrency)
			lost++
		}
	}
	s.Equal(1, lost, "confirm=%v cancel=%v", confirmed, cancelled)

	stored, err := s.svc.GetByID(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.Version)
	s.Contains([]entity.SessionStatus{entity.SessionStatusConfirmed, entity.SessionStatusCancelled}, stored.Status)
}

// readBarrierRepository holds the first two Gets until both have read.
type readBarrierRepository struct {
	repository.SessionRepository
	reads sync.WaitGroup
	seen  atomic.Int32
}

func (r *readBarrierRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	session, err := r.SessionRepository.Get(ctx, id)
	if r.seen.Add(1) <= 2 {
		r.reads.Done()
		r.reads.Wait()
	}
	return session, err
}

// Without the tutor lock the store constraint alone still admits one booking.
func TestCreate_StoreRejectsRaceWithoutLock(t *testing.T) {
	log := zap.NewNop()
	tutor := entity.Tutor{ID: uuid.New(), HourlyRate: decimal.NewFromInt(100)}
	student := entity.Student{ID: uuid.New()}
	repo := &repository.Repository{
		Session: repository.NewMemorySessionRepository(log),
		Tutor:   repository.NewMemoryTutorRepository(tutor),
		Student: repository.NewMemoryStudentRepository(student),
	}
	svc := NewSessionService(repo, nil, utils.DefaultBookingConfig(), log)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), &entity.Session{
				TutorID:        tutor.ID,
				StudentID:      student.ID,
				ScheduledStart: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, scheduling.ErrConflict)
	}
	require.Equal(t, 1, ok)
}

func ids(sessions []*entity.Session) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}
