package utils

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Booking  BookingConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
}

// RedisConfig enables distributed booking locks when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Driver string // postgres | memory
}

type BookingConfig struct {
	Location               *time.Location
	DefaultSubject         string
	FallbackHourlyRate     decimal.Decimal
	OnlineLocationLabel    string
	OfflineLocationLabel   string
	DefaultDurationMinutes int
	AllowStudentFallback   bool
	LockTTL                time.Duration
	LockWait               time.Duration
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "tutoring-scheduler")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("HTTP_READ_TIMEOUT", "10s")
	viper.SetDefault("HTTP_WRITE_TIMEOUT", "15s")
	viper.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "15s")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("BOOKING_TIMEZONE", "Asia/Ho_Chi_Minh")
	viper.SetDefault("BOOKING_DEFAULT_SUBJECT", "Mathematics")
	viper.SetDefault("BOOKING_FALLBACK_HOURLY_RATE", "200000")
	viper.SetDefault("BOOKING_ONLINE_LOCATION", "Online (Zoom / Google Meet)")
	viper.SetDefault("BOOKING_OFFLINE_LOCATION", "In person")
	viper.SetDefault("BOOKING_DEFAULT_DURATION_MINUTES", 60)
	viper.SetDefault("BOOKING_ALLOW_STUDENT_FALLBACK", false)
	viper.SetDefault("BOOKING_LOCK_TTL", "10s")
	viper.SetDefault("BOOKING_LOCK_WAIT", "5s")

	if err := viper.ReadInConfig(); err != nil {
		// a missing .env is fine, the environment alone can configure the service
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	location, err := time.LoadLocation(viper.GetString("BOOKING_TIMEZONE"))
	if err != nil {
		return nil, err
	}

	fallbackRate, err := decimal.NewFromString(viper.GetString("BOOKING_FALLBACK_HOURLY_RATE"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Port:            viper.GetString("PORT"),
			Debug:           viper.GetBool("DEBUG"),
			LogPath:         viper.GetString("LOG_PATH"),
			ReadTimeout:     viper.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:    viper.GetDuration("HTTP_WRITE_TIMEOUT"),
			ShutdownTimeout: viper.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			Name:        viper.GetString("DB_NAME"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASS"),
			MaxConns:    viper.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Storage: StorageConfig{
			Driver: viper.GetString("STORAGE_DRIVER"),
		},
		Booking: BookingConfig{
			Location:               location,
			DefaultSubject:         viper.GetString("BOOKING_DEFAULT_SUBJECT"),
			FallbackHourlyRate:     fallbackRate,
			OnlineLocationLabel:    viper.GetString("BOOKING_ONLINE_LOCATION"),
			OfflineLocationLabel:   viper.GetString("BOOKING_OFFLINE_LOCATION"),
			DefaultDurationMinutes: viper.GetInt("BOOKING_DEFAULT_DURATION_MINUTES"),
			AllowStudentFallback:   viper.GetBool("BOOKING_ALLOW_STUDENT_FALLBACK"),
			LockTTL:                viper.GetDuration("BOOKING_LOCK_TTL"),
			LockWait:               viper.GetDuration("BOOKING_LOCK_WAIT"),
		},
	}

	return config, nil
}

// DefaultBookingConfig mirrors the LoadConfig defaults for callers that do not read .env.
func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		Location:               time.UTC,
		DefaultSubject:         "Mathematics",
		FallbackHourlyRate:     decimal.NewFromInt(200000),
		OnlineLocationLabel:    "Online (Zoom / Google Meet)",
		OfflineLocationLabel:   "In person",
		DefaultDurationMinutes: 60,
		LockTTL:                10 * time.Second,
		LockWait:               5 * time.Second,
	}
}
