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

// TutorRepository is the read side of the externally owned tutor profiles.
type TutorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Tutor, error)
}

type tutorRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTutorRepository(db database.PgxIface, log *zap.Logger) TutorRepository {
	return &tutorRepository{
		db:  db,
		log: log.With(zap.String("repository", "tutor")),
	}
}

func (r *tutorRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tutor, error) {
	query := `SELECT id, full_name, hourly_rate FROM tutors WHERE id = $1`

	var tutor entity.Tutor
	err := r.db.QueryRow(ctx, query, id).Scan(&tutor.ID, &tutor.FullName, &tutor.HourlyRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find tutor by ID",
			zap.Error(err),
			zap.String("tutor_id", id.String()),
		)
		return nil, fmt.Errorf("find tutor by ID %s: %w", id.String(), err)
	}

	return &tutor, nil
}
