package wire

import (
	"net/http"

	"tutoring-scheduler/internal/adaptor"
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/internal/usecase"
	"tutoring-scheduler/pkg/lock"
	"tutoring-scheduler/pkg/middleware"
	"tutoring-scheduler/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the wired HTTP surface
type App struct {
	Router *chi.Mux
}

// Wiring builds services, handlers and the router
func Wiring(repo *repository.Repository, locker lock.Locker, config *utils.Config, logger *zap.Logger) *App {
	service := usecase.NewService(repo, locker, config, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, logger)

	return &App{
		Router: router,
	}
}

func setupRouter(handler *adaptor.Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireSession(r, handler.Session)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
