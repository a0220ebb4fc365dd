package main

import (
	"context"
	"log"

	"tutoring-scheduler/cmd"
	"tutoring-scheduler/internal/data/entity"
	"tutoring-scheduler/internal/data/repository"
	"tutoring-scheduler/internal/wire"
	"tutoring-scheduler/pkg/database"
	"tutoring-scheduler/pkg/lock"
	"tutoring-scheduler/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.String("storage", config.Storage.Driver),
		zap.Bool("debug", config.App.Debug),
	)

	// Initialize all repositories
	var repos *repository.Repository
	switch config.Storage.Driver {
	case utils.StorageDriverMemory:
		repos = newDemoRepository(logger)
		logger.Warn("Using in-memory storage, data is lost on restart")

	default:
		db, err := database.InitDB(config.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if config.Database.AutoMigrate {
			if err := database.EnsureSchema(context.Background(), db); err != nil {
				logger.Fatal("Failed to apply schema", zap.Error(err))
			}
			logger.Info("Database schema applied")
		}

		logger.Info("Database connected successfully")
		repos = repository.NewRepository(db, logger)
	}

	// Per-tutor booking lock, shared across instances when Redis is configured
	var locker lock.Locker
	if config.Redis.Addr != "" {
		redisLock, err := lock.NewRedisLock(config.Redis.Addr, config.Redis.Password, config.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisLock.Close()
		locker = redisLock
		logger.Info("Using redis booking locks", zap.String("addr", config.Redis.Addr))
	} else {
		locker = lock.NewLocalLock()
	}

	// Wire all dependencies
	app := wire.Wiring(repos, locker, config, logger)

	// Start server
	if err := cmd.APIServer(app.Router, config.App, logger); err != nil {
		logger.Error("Server error", zap.Error(err))
	}
}

// newDemoRepository seeds one tutor and one student so the API is usable
// without a database.
func newDemoRepository(logger *zap.Logger) *repository.Repository {
	tutor := entity.Tutor{ID: uuid.New(), FullName: "Demo Tutor", HourlyRate: decimal.NewFromInt(200000)}
	student := entity.Student{ID: uuid.New(), FullName: "Demo Student"}

	repos := repository.NewMemoryRepository(logger)
	repos.Tutor = repository.NewMemoryTutorRepository(tutor)
	repos.Student = repository.NewMemoryStudentRepository(student)

	logger.Info("Seeded demo data",
		zap.String("tutor_id", tutor.ID.String()),
		zap.String("student_id", student.ID.String()))

	return repos
}
