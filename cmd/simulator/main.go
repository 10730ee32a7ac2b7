package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"

	"trading_simulator/internal/config"
	"trading_simulator/internal/domain"
	"trading_simulator/internal/infra/db"
	"trading_simulator/internal/infra/logger"
	"trading_simulator/internal/infra/repository"
	"trading_simulator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(cfg.Logging.Level)
	log := logger.Logger

	conn, err := db.Connect(cfg.Database.DSN, logger.Component("db"))
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	investorRepo, err := repository.NewGormInvestorRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("investor repository init failed")
	}
	strategyRepo, err := repository.NewGormStrategyRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("strategy repository init failed")
	}
	signalRepo, err := repository.NewGormSignalRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("signal repository init failed")
	}
	candleRepo, err := repository.NewGormCandleRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("candle repository init failed")
	}
	operationRepo, err := repository.NewGormOperationRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("operation repository init failed")
	}
	eventRepo, err := repository.NewGormEventRepository(conn)
	if err != nil {
		log.Fatal().Err(err).Msg("event repository init failed")
	}

	confirmationRules := []domain.ConfirmationRule{
		{Kind: domain.RuleMaxWaitMinutes, Value: cfg.Simulation.ConfirmMaxWaitMin},
	}
	if cfg.Simulation.ConfirmAdvancePct > 0 {
		confirmationRules = append(confirmationRules, domain.ConfirmationRule{
			Kind:  domain.RulePriceAdvancePct,
			Value: cfg.Simulation.ConfirmAdvancePct,
		})
	}

	simLog := logger.Component("simulator")

	// Every investor gets its own event buffer and position service so
	// concurrent runs never share mutable state.
	newSimulator := func(inv *domain.Investor) (*usecase.Simulator, error) {
		events, err := usecase.NewEventRecorder(eventRepo, cfg.Simulation.EventFlushBatch, simLog)
		if err != nil {
			return nil, err
		}
		positions, err := usecase.NewPositionService(operationRepo, events, simLog)
		if err != nil {
			return nil, err
		}
		return usecase.NewSimulator(usecase.SimulatorDeps{
			Investor:          inv,
			Start:             cfg.Simulation.Start,
			End:               cfg.Simulation.End,
			Signals:           signalRepo,
			Candles:           candleRepo,
			Strategies:        strategyRepo,
			Positions:         positions,
			Events:            events,
			Investors:         investorRepo,
			ConfirmationRules: confirmationRules,
			Logger:            simLog,
		})
	}

	runner, err := usecase.NewBatchRunner(investorRepo, cfg.Simulation.Workers, newSimulator, simLog)
	if err != nil {
		log.Fatal().Err(err).Msg("batch runner init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("batch run failed")
	}

	if cfg.Scheduler.Interval <= 0 {
		return
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init failed")
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Scheduler.Interval),
		gocron.NewTask(func() {
			if err := runner.Run(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled batch run failed")
			}
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduling batch job failed")
	}
	scheduler.Start()
	log.Info().Dur("interval", cfg.Scheduler.Interval).Msg("scheduler started")

	<-ctx.Done()
	log.Info().Msg("shutting down")
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
}
