package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

func TestBatchRunnerSimulatesEveryActiveInvestor(t *testing.T) {
	store := &fakeInvestorStore{
		investors: []domain.Investor{
			{ID: 1, ContributedCapital: 10000, CurrentCapital: 10000, RiskMaxPct: 10, SizeMin: 100, SizeMax: 5000, DailyLimit: 5, OpenPositionsLimit: 3, MaxLeverage: 2},
			{ID: 2, ContributedCapital: 20000, CurrentCapital: 20000, RiskMaxPct: 10, SizeMin: 100, SizeMax: 5000, DailyLimit: 5, OpenPositionsLimit: 3, MaxLeverage: 2},
		},
	}

	var mu sync.Mutex
	seen := make(map[int64]bool)

	factory := func(inv *domain.Investor) (*Simulator, error) {
		mu.Lock()
		seen[inv.ID] = true
		mu.Unlock()

		recorder, err := NewEventRecorder(&fakeEventStore{}, 1, zerolog.Nop())
		if err != nil {
			return nil, err
		}
		positions, err := NewPositionService(&fakeOperationStore{}, recorder, zerolog.Nop())
		if err != nil {
			return nil, err
		}
		return NewSimulator(SimulatorDeps{
			Investor:   inv,
			Start:      baseMinute,
			End:        baseMinute,
			Signals:    &fakeSignalSource{},
			Candles:    &fakeCandleSource{},
			Strategies: &fakeStrategySource{},
			Positions:  positions,
			Events:     recorder,
			Investors:  store,
			Logger:     zerolog.Nop(),
		})
	}

	runner, err := NewBatchRunner(store, 2, factory, zerolog.Nop())
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !seen[1] || !seen[2] {
		t.Fatalf("expected both investors simulated, got %v", seen)
	}
	if len(store.persisted) != 2 {
		t.Fatalf("expected final capital persisted for both, got %v", store.persisted)
	}
}

func TestBatchRunnerSurvivesFactoryFailure(t *testing.T) {
	store := &fakeInvestorStore{
		investors: []domain.Investor{
			{ID: 1, CurrentCapital: 1000},
			{ID: 2, CurrentCapital: 1000},
		},
	}

	var mu sync.Mutex
	attempts := 0

	factory := func(inv *domain.Investor) (*Simulator, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, context.DeadlineExceeded
	}

	runner, err := NewBatchRunner(store, 1, factory, zerolog.Nop())
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("one investor's failure must not abort the batch: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected both investors attempted, got %d", attempts)
	}
}
