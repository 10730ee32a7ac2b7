package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pingAttempts = 3

// Connect opens the database behind the DSN. Postgres DSNs (postgres://
// URLs or key=value strings containing host=) go through the postgres
// driver; anything else is treated as a sqlite file path, which keeps
// local runs and tests free of external services.
func Connect(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	var (
		conn *gorm.DB
		err  error
	)
	if isPostgresDSN(dsn) {
		conn, err = connectPostgres(dsn, log)
	} else {
		conn, err = connectSQLite(dsn, log)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if pingErr = sqlDB.Ping(); pingErr == nil {
			break
		}
		log.Warn().Err(pingErr).Int("attempt", attempt).Msg("database ping failed")
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	if pingErr != nil {
		return nil, fmt.Errorf("ping database after %d attempts: %w", pingAttempts, pingErr)
	}
	return conn, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// zerologWriter routes gorm's query/error output through the application
// logger instead of the stdlib log package.
type zerologWriter struct {
	log zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.log.Debug().Msgf(format, args...)
}

func gormConfig(log zerolog.Logger) *gorm.Config {
	level := gormlogger.Warn
	if log.GetLevel() <= zerolog.DebugLevel {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.New(zerologWriter{log: log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}
