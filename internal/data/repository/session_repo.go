package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SessionRepository is the session store. It holds no business rules
// beyond the store-level overlap constraint.
type SessionRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	List(ctx context.Context) ([]*entity.Session, error)
	ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error)
	ListByStatus(ctx context.Context, status entity.SessionStatus) ([]*entity.Session, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.Session, error)
	ListActiveConflicting(ctx context.Context, tutorID uuid.UUID, start, end time.Time) ([]*entity.Session, error)

	// Save inserts sessions with Version 0 and updates the rest, guarded by
	// Version. On success ID, Version and timestamps are written back.
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id uuid.UUID) error

	CountByTutorAndStatus(ctx context.Context, tutorID uuid.UUID, status entity.SessionStatus) (int64, error)
	CountByStudentAndStatus(ctx context.Context, studentID uuid.UUID, status entity.SessionStatus) (int64, error)
}

const sessionColumns = `id, tutor_id, student_id, subject, scheduled_start, duration_minutes, status,
		       location, notes, hourly_rate, total_amount, version, created_at, updated_at`

type sessionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSessionRepository(db database.PgxIface, log *zap.Logger) SessionRepository {
	return &sessionRepository{
		db:  db,
		log: log.With(zap.String("repository", "session")),
	}
}

func scanSession(row pgx.Row) (*entity.Session, error) {
	var s entity.Session
	err := row.Scan(
		&s.ID,
		&s.TutorID,
		&s.StudentID,
		&s.Subject,
		&s.ScheduledStart,
		&s.DurationMinutes,
		&s.Status,
		&s.Location,
		&s.Notes,
		&s.HourlyRate,
		&s.TotalAmount,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find session by ID",
			zap.Error(err),
			zap.String("session_id", id.String()),
		)
		return nil, fmt.Errorf("find session by ID %s: %w", id.String(), err)
	}

	return s, nil
}

func (r *sessionRepository) List(ctx context.Context) ([]*entity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY scheduled_start`
	return r.query(ctx, "list sessions", query)
}

func (r *sessionRepository) ListByTutor(ctx context.Context, tutorID uuid.UUID) ([]*entity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tutor_id = $1 ORDER BY scheduled_start`
	return r.query(ctx, "list sessions by tutor "+tutorID.String(), query, tutorID)
}

func (r *sessionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]*entity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE student_id = $1 ORDER BY scheduled_start`
	return r.query(ctx, "list sessions by student "+studentID.String(), query, studentID)
}

func (r *sessionRepository) ListByStatus(ctx context.Context, status entity.SessionStatus) ([]*entity.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE status = $1 ORDER BY scheduled_start`
	return r.query(ctx, "list sessions by status "+string(status), query, string(status))
}

// ListByDateRange matches sessions starting within [start, end], both inclusive.
func (r *sessionRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]*entity.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE scheduled_start BETWEEN $1 AND $2
		ORDER BY scheduled_start
	`
	return r.query(ctx, "list sessions by date range", query, start, end)
}

func (r *sessionRepository) ListActiveConflicting(ctx context.Context, tutorID uuid.UUID, start, end time.Time) ([]*entity.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tutor_id = $1
		  AND status IN ('SCHEDULED', 'CONFIRMED')
		  AND scheduled_start < $3
		  AND scheduled_end > $2
		ORDER BY scheduled_start
	`
	return r.query(ctx, "list conflicting sessions for tutor "+tutorID.String(), query, tutorID, start, end)
}

func (r *sessionRepository) query(ctx context.Context, op, query string, args ...any) ([]*entity.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query sessions", zap.Error(err), zap.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []*entity.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			r.log.Error("Failed to scan session row", zap.Error(err))
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

func (r *sessionRepository) Save(ctx context.Context, s *entity.Session) error {
	if s.Version == 0 {
		return r.insert(ctx, s)
	}
	return r.update(ctx, s)
}

func (r *sessionRepository) insert(ctx context.Context, s *entity.Session) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	query := `
		INSERT INTO sessions (id, tutor_id, student_id, subject, scheduled_start, scheduled_end,
		                      duration_minutes, status, location, notes, hourly_rate, total_amount,
		                      version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW(), NOW())
		RETURNING version, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.TutorID,
		s.StudentID,
		s.Subject,
		s.ScheduledStart,
		s.End(),
		s.DurationMinutes,
		string(s.Status),
		s.Location,
		s.Notes,
		s.HourlyRate,
		s.TotalAmount,
	).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		err = translatePgError(err)
		if errors.Is(err, ErrOverlap) || errors.Is(err, ErrMissingReference) {
			r.log.Warn("Session insert rejected by constraint",
				zap.Error(err),
				zap.String("tutor_id", s.TutorID.String()),
				zap.String("student_id", s.StudentID.String()),
			)
			return fmt.Errorf("create session for tutor %s: %w", s.TutorID.String(), err)
		}
		r.log.Error("Failed to create session",
			zap.Error(err),
			zap.String("tutor_id", s.TutorID.String()),
		)
		return fmt.Errorf("create session for tutor %s: %w", s.TutorID.String(), err)
	}

	return nil
}

func (r *sessionRepository) update(ctx context.Context, s *entity.Session) error {
	query := `
		UPDATE sessions
		SET subject = $3, scheduled_start = $4, scheduled_end = $5, duration_minutes = $6,
		    status = $7, location = $8, notes = $9, hourly_rate = $10, total_amount = $11,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.Version,
		s.Subject,
		s.ScheduledStart,
		s.End(),
		s.DurationMinutes,
		string(s.Status),
		s.Location,
		s.Notes,
		s.HourlyRate,
		s.TotalAmount,
	).Scan(&s.Version, &s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, s.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("session %s: %w", s.ID.String(), ErrNotFound)
		}
		return fmt.Errorf("session %s at version %d: %w", s.ID.String(), s.Version, ErrStaleVersion)
	}
	if err != nil {
		err = translatePgError(err)
		if errors.Is(err, ErrOverlap) {
			return fmt.Errorf("update session %s: %w", s.ID.String(), err)
		}
		r.log.Error("Failed to update session",
			zap.Error(err),
			zap.String("session_id", s.ID.String()),
		)
		return fmt.Errorf("update session %s: %w", s.ID.String(), err)
	}

	return nil
}

func (r *sessionRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session %s exists: %w", id.String(), err)
	}
	return exists, nil
}

func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM sessions WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.Error("Failed to delete session",
			zap.Error(err),
			zap.String("session_id", id.String()),
		)
		return fmt.Errorf("delete session %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id.String(), ErrNotFound)
	}

	r.log.Info("Session deleted", zap.String("session_id", id.String()))
	return nil
}

func (r *sessionRepository) CountByTutorAndStatus(ctx context.Context, tutorID uuid.UUID, status entity.SessionStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE tutor_id = $1 AND status = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, tutorID, string(status)).Scan(&count); err != nil {
		r.log.Error("Failed to count sessions by tutor",
			zap.Error(err),
			zap.String("tutor_id", tutorID.String()),
			zap.String("status", string(status)),
		)
		return 0, fmt.Errorf("count sessions by tutor %s: %w", tutorID.String(), err)
	}

	return count, nil
}

func (r *sessionRepository) CountByStudentAndStatus(ctx context.Context, studentID uuid.UUID, status entity.SessionStatus) (int64, error) {
	query := `SELECT COUNT(*) FROM sessions WHERE student_id = $1 AND status = $2`

	var count int64
	if err := r.db.QueryRow(ctx, query, studentID, string(status)).Scan(&count); err != nil {
		r.log.Error("Failed to count sessions by student",
			zap.Error(err),
			zap.String("student_id", studentID.String()),
			zap.String("status", string(status)),
		)
		return 0, fmt.Errorf("count sessions by student %s: %w", studentID.String(), err)
	}

	return count, nil
}
