package adaptor

import (
	"tutoring-scheduler/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Session *SessionHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Session: NewSessionHandler(service.Session, log),
	}
}
