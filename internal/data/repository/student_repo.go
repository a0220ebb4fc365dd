package repository

import (
	"context"
	"errors"
	"fmt"

	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type StudentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error)
	// FirstAvailable returns the oldest student record, or nil when there is none.
	FirstAvailable(ctx context.Context) (*entity.Student, error)
}

type studentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewStudentRepository(db database.PgxIface, log *zap.Logger) StudentRepository {
	return &studentRepository{
		db:  db,
		log: log.With(zap.String("repository", "student")),
	}
}

func (r *studentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error) {
	query := `SELECT id, full_name, created_at FROM students WHERE id = $1`
	return r.findOne(ctx, "find student by ID "+id.String(), query, id)
}

func (r *studentRepository) FirstAvailable(ctx context.Context) (*entity.Student, error) {
	query := `SELECT id, full_name, created_at FROM students ORDER BY created_at, id LIMIT 1`
	return r.findOne(ctx, "find first student", query)
}

func (r *studentRepository) findOne(ctx context.Context, op, query string, args ...any) (*entity.Student, error) {
	var student entity.Student
	err := r.db.QueryRow(ctx, query, args...).Scan(&student.ID, &student.FullName, &student.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find student", zap.Error(err), zap.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &student, nil
}
