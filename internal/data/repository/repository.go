package repository

import (
	"tutoring-scheduler/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Session SessionRepository
	Tutor   TutorRepository
	Student StudentRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Session: NewSessionRepository(db, log),
		Tutor:   NewTutorRepository(db, log),
		Student: NewStudentRepository(db, log),
	}
}

// NewMemoryRepository backs every store with process memory.
func NewMemoryRepository(log *zap.Logger) *Repository {
	return &Repository{
		Session: NewMemorySessionRepository(log),
		Tutor:   NewMemoryTutorRepository(),
		Student: NewMemoryStudentRepository(),
	}
}
