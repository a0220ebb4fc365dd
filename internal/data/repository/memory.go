package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tutoring-scheduler/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memorySessionRepository keeps sessions in a map. Reads and writes hand out
// copies so callers never share state with the store.
type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entity.Session
	now      func() time.Time
	log      *zap.Logger
}

func NewMemorySessionRepository(log *zap.Logger) SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[uuid.UUID]*entity.Session),
		now:      time.Now,
		log:      log.With(zap.String("repository", "session-memory")),
	}
}

func (r *memorySessionRepository) Get(_ context.Context, id uuid.UUID) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

func (r *memorySessionRepository) List(_ context.Context) ([]*entity.Session, error) {
	return r.filter(func(*entity.Session) bool { return true }), nil
}

func (r *memorySessionRepository) ListByTutor(_ context.Context, tutorID uuid.UUID) ([]*entity.Session, error) {
	return r.filter(func(s *entity.Session) bool { return s.TutorID == tutorID }), nil
}

func (r *memorySessionRepository) ListByStudent(_ context.Context, studentID uuid.UUID) ([]*entity.Session, error) {
	return r.filter(func(s *entity.Session) bool { return s.StudentID == studentID }), nil
}

func (r *memorySessionRepository) ListByStatus(_ context.Context, status entity.SessionStatus) ([]*entity.Session, error) {
	return r.filter(func(s *entity.Session) bool { return s.Status == status }), nil
}

func (r *memorySessionRepository) ListByDateRange(_ context.Context, start, end time.Time) ([]*entity.Session, error) {
	return r.filter(func(s *entity.Session) bool {
		return !s.ScheduledStart.Before(start) && !s.ScheduledStart.After(end)
	}), nil
}

func (r *memorySessionRepository) ListActiveConflicting(_ context.Context, tutorID uuid.UUID, start, end time.Time) ([]*entity.Session, error) {
	return r.filter(func(s *entity.Session) bool {
		return s.TutorID == tutorID && s.Status.IsActive() &&
			s.ScheduledStart.Before(end) && start.Before(s.End())
	}), nil
}

func (r *memorySessionRepository) filter(match func(*entity.Session) bool) []*entity.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Session
	for _, s := range r.sessions {
		if match(s) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledStart.Equal(out[j].ScheduledStart) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ScheduledStart.Before(out[j].ScheduledStart)
	})
	return out
}

func (r *memorySessionRepository) Save(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Version == 0 {
		return r.insertLocked(s)
	}
	return r.updateLocked(s)
}

func (r *memorySessionRepository) insertLocked(s *entity.Session) error {
	if s.Status.IsActive() && r.overlapsLocked(s) {
		return fmt.Errorf("create session for tutor %s: %w", s.TutorID.String(), ErrOverlap)
	}

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := r.now()
	s.Version = 1
	s.CreatedAt = now
	s.UpdatedAt = now

	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *memorySessionRepository) updateLocked(s *entity.Session) error {
	current, ok := r.sessions[s.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", s.ID.String(), ErrNotFound)
	}
	if current.Version != s.Version {
		return fmt.Errorf("session %s at version %d: %w", s.ID.String(), s.Version, ErrStaleVersion)
	}
	if s.Status.IsActive() && r.overlapsLocked(s) {
		return fmt.Errorf("update session %s: %w", s.ID.String(), ErrOverlap)
	}

	s.Version = current.Version + 1
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = r.now()
	// tutor and student are fixed at creation
	s.TutorID = current.TutorID
	s.StudentID = current.StudentID

	r.sessions[s.ID] = s.Clone()
	return nil
}

// overlapsLocked mirrors the Postgres exclusion constraint.
func (r *memorySessionRepository) overlapsLocked(s *entity.Session) bool {
	for id, other := range r.sessions {
		if id == s.ID || other.TutorID != s.TutorID || !other.Status.IsActive() {
			continue
		}
		if other.ScheduledStart.Before(s.End()) && s.ScheduledStart.Before(other.End()) {
			return true
		}
	}
	return false
}

func (r *memorySessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id.String(), ErrNotFound)
	}
	delete(r.sessions, id)

	r.log.Info("Session deleted", zap.String("session_id", id.String()))
	return nil
}

func (r *memorySessionRepository) CountByTutorAndStatus(_ context.Context, tutorID uuid.UUID, status entity.SessionStatus) (int64, error) {
	return r.count(func(s *entity.Session) bool { return s.TutorID == tutorID && s.Status == status }), nil
}

func (r *memorySessionRepository) CountByStudentAndStatus(_ context.Context, studentID uuid.UUID, status entity.SessionStatus) (int64, error) {
	return r.count(func(s *entity.Session) bool { return s.StudentID == studentID && s.Status == status }), nil
}

func (r *memorySessionRepository) count(match func(*entity.Session) bool) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, s := range r.sessions {
		if match(s) {
			n++
		}
	}
	return n
}

// MemoryTutorRepository is a TutorRepository that can be seeded.
type MemoryTutorRepository struct {
	mu     sync.RWMutex
	tutors map[uuid.UUID]entity.Tutor
}

func NewMemoryTutorRepository(tutors ...entity.Tutor) *MemoryTutorRepository {
	r := &MemoryTutorRepository{tutors: make(map[uuid.UUID]entity.Tutor)}
	for _, t := range tutors {
		r.Add(t)
	}
	return r
}

func (r *MemoryTutorRepository) Add(t entity.Tutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tutors[t.ID] = t
}

func (r *MemoryTutorRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Tutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tutors[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// MemoryStudentRepository keeps insertion order so FirstAvailable is stable.
type MemoryStudentRepository struct {
	mu       sync.RWMutex
	students []entity.Student
}

func NewMemoryStudentRepository(students ...entity.Student) *MemoryStudentRepository {
	r := &MemoryStudentRepository{}
	for _, s := range students {
		r.Add(s)
	}
	return r
}

func (r *MemoryStudentRepository) Add(s entity.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = append(r.students, s)
}

func (r *MemoryStudentRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.students {
		if s.ID == id {
			st := s
			return &st, nil
		}
	}
	return nil, nil
}

func (r *MemoryStudentRepository) FirstAvailable(_ context.Context) (*entity.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.students) == 0 {
		return nil, nil
	}
	st := r.students[0]
	return &st, nil
}
