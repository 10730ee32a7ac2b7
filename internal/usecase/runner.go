package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

// BatchRunner simulates every active investor over the configured window.
// Investors are independent units of work (each owns its ledger, position
// map and event buffer), so they may run concurrently up to the worker
// limit. One investor's critical failure never aborts the others.
type BatchRunner struct {
	investors    domain.InvestorStore
	workers      int
	newSimulator func(inv *domain.Investor) (*Simulator, error)
	logger       zerolog.Logger
}

func NewBatchRunner(investors domain.InvestorStore, workers int, newSimulator func(inv *domain.Investor) (*Simulator, error), logger zerolog.Logger) (*BatchRunner, error) {
	if investors == nil {
		return nil, errors.New("investor store required")
	}
	if newSimulator == nil {
		return nil, errors.New("simulator factory required")
	}
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{
		investors:    investors,
		workers:      workers,
		newSimulator: newSimulator,
		logger:       logger,
	}, nil
}

func (r *BatchRunner) Run(ctx context.Context) error {
	configs, err := r.investors.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		r.logger.Warn().Msg("no active investors found")
		return nil
	}
	r.logger.Info().Int("investors", len(configs)).Int("workers", r.workers).Msg("batch started")

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for i := range configs {
		inv := configs[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.runOne(ctx, &inv)
		}()
	}
	wg.Wait()

	r.logger.Info().Msg("batch finished")
	return nil
}

func (r *BatchRunner) runOne(ctx context.Context, inv *domain.Investor) {
	sim, err := r.newSimulator(inv)
	if err != nil {
		r.logger.Error().Err(err).Int64("investor", inv.ID).Msg("simulator init failed")
		return
	}
	if err := sim.Run(ctx); err != nil {
		r.logger.Error().Err(err).Int64("investor", inv.ID).Msg("simulation aborted")
	}
}
