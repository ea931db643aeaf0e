package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-tasks-backend/internal/config"
)

// Connect opens the Postgres pool through lib/pq and checks it is reachable.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.IsDevelopment() {
		level = logger.Info
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.ConnString(),
	}), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: Now,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Info("connected to postgres",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("db", cfg.DBName),
	)
	return gdb, nil
}

// Now is the clock every table uses for created/updated timestamps. Stored
// times are always UTC so comparisons behave the same on every dialect.
func Now() time.Time {
	return time.Now().UTC()
}

// Migrate creates or alters the tables backing models.
func Migrate(gdb *gorm.DB, models ...any) error {
	if err := gdb.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// Postgres (SQLSTATE 23505) or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotFound reports whether err means "no row".
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
