package usecase

import (
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/pkg/lock"
	"tutoring-scheduler/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Session SessionService
}

func NewService(repo *repository.Repository, locker lock.Locker, config *utils.Config, log *zap.Logger) *Service {
	return &Service{
		Session: NewSessionService(repo, locker, config.Booking, log),
	}
}
