package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	DSN string
}

type LoggingConfig struct {
	Level string
}

type SimulationConfig struct {
	Start             time.Time
	End               time.Time
	Workers           int
	EventFlushBatch   int
	ConfirmMaxWaitMin float64
	ConfirmAdvancePct float64
}

type SchedulerConfig struct {
	Interval time.Duration
}

type AppConfig struct {
	Database   DatabaseConfig
	Logging    LoggingConfig
	Simulation SimulationConfig
	Scheduler  SchedulerConfig
}

func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("DATABASE_DSN", "data/simulator.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SIM_START", "2025-01-01T00:00:00Z")
	viper.SetDefault("SIM_END", "2025-03-01T00:00:00Z")
	viper.SetDefault("SIM_WORKERS", 1)
	viper.SetDefault("EVENT_FLUSH_BATCH", 500)
	viper.SetDefault("CONFIRM_MAX_WAIT_MIN", 60.0)
	viper.SetDefault("CONFIRM_PRICE_ADVANCE_PCT", 0.0)
	viper.SetDefault("SCHEDULER_INTERVAL", "0")

	start, err := time.Parse(time.RFC3339, viper.GetString("SIM_START"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_START: %w", err)
	}
	end, err := time.Parse(time.RFC3339, viper.GetString("SIM_END"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_END: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("SIM_END %s before SIM_START %s", end, start)
	}

	interval, err := time.ParseDuration(viper.GetString("SCHEDULER_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler interval: %w", err)
	}

	cfg := &AppConfig{
		Database: DatabaseConfig{
			DSN: viper.GetString("DATABASE_DSN"),
		},
		Logging: LoggingConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Simulation: SimulationConfig{
			Start:             start,
			End:               end,
			Workers:           viper.GetInt("SIM_WORKERS"),
			EventFlushBatch:   viper.GetInt("EVENT_FLUSH_BATCH"),
			ConfirmMaxWaitMin: viper.GetFloat64("CONFIRM_MAX_WAIT_MIN"),
			ConfirmAdvancePct: viper.GetFloat64("CONFIRM_PRICE_ADVANCE_PCT"),
		},
		Scheduler: SchedulerConfig{
			Interval: interval,
		},
	}

	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}

	return cfg, nil
}
