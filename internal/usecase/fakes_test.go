package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

type fakeSignalSource struct {
	byMinute map[time.Time][]domain.Signal
}

func (f *fakeSignalSource) SignalsAt(_ context.Context, ts time.Time) ([]domain.Signal, error) {
	return f.byMinute[ts.UTC()], nil
}

type fakeCandleSource struct {
	candles map[string]map[time.Time]domain.Candle
}

func (f *fakeCandleSource) CandleExtremes(_ context.Context, ticker string, ts time.Time) (domain.Candle, bool, error) {
	candle, ok := f.candles[ticker][ts.UTC()]
	return candle, ok, nil
}

func (f *fakeCandleSource) CandleID(_ context.Context, ticker string, ts time.Time) (int64, bool, error) {
	candle, ok := f.candles[ticker][ts.UTC()]
	return candle.ID, ok, nil
}

type fakeStrategySource struct {
	params map[int64]domain.StrategyParams
}

func (f *fakeStrategySource) Params(_ context.Context, strategyID int64) (domain.StrategyParams, error) {
	params, ok := f.params[strategyID]
	if !ok {
		return domain.StrategyParams{}, errors.New("strategy not found")
	}
	return params, nil
}

type fakeOperationStore struct {
	nextID     int64
	created    []domain.Operation
	failCreate bool

	dcaUpdates        int
	closeUpdates      int
	extremeUpdates    int
	unrealizedUpdates map[int64]float64
}

func (f *fakeOperationStore) CreateOperation(_ context.Context, op *domain.Operation) (int64, error) {
	if f.failCreate {
		return 0, errors.New("create rejected")
	}
	f.nextID++
	snapshot := *op
	snapshot.ID = f.nextID
	f.created = append(f.created, snapshot)
	return f.nextID, nil
}

func (f *fakeOperationStore) UpdateDCA(_ context.Context, _ *domain.Operation) error {
	f.dcaUpdates++
	return nil
}

func (f *fakeOperationStore) UpdateClose(_ context.Context, _ *domain.Operation) error {
	f.closeUpdates++
	return nil
}

func (f *fakeOperationStore) UpdateExtremes(_ context.Context, _ int64, _, _ float64) error {
	f.extremeUpdates++
	return nil
}

func (f *fakeOperationStore) UpdateUnrealizedPnL(_ context.Context, operationID int64, pnl float64) error {
	if f.unrealizedUpdates == nil {
		f.unrealizedUpdates = make(map[int64]float64)
	}
	f.unrealizedUpdates[operationID] = pnl
	return nil
}

type fakeEventStore struct {
	appended []domain.SimEvent
	fail     bool
}

func (f *fakeEventStore) AppendEvents(_ context.Context, events []domain.SimEvent) error {
	if f.fail {
		return errors.New("append rejected")
	}
	f.appended = append(f.appended, events...)
	return nil
}

func (f *fakeEventStore) eventsOfType(kind domain.EventType) []domain.SimEvent {
	var out []domain.SimEvent
	for _, ev := range f.appended {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakeInvestorStore struct {
	investors []domain.Investor
	persisted map[int64]float64
}

func (f *fakeInvestorStore) ListActive(_ context.Context) ([]domain.Investor, error) {
	return f.investors, nil
}

func (f *fakeInvestorStore) PersistCapital(_ context.Context, investorID int64, capital float64) error {
	if f.persisted == nil {
		f.persisted = make(map[int64]float64)
	}
	f.persisted[investorID] = capital
	return nil
}

type fixture struct {
	sim       *Simulator
	inv       *domain.Investor
	ops       *fakeOperationStore
	events    *fakeEventStore
	investors *fakeInvestorStore
	recorder  *EventRecorder
	positions *PositionService
}

func defaultInvestor() *domain.Investor {
	inv := &domain.Investor{
		ID:                 1,
		ContributedCapital: 10000,
		CurrentCapital:     10000,
		RiskMaxPct:         10,
		SizeMin:            100,
		SizeMax:            5000,
		DailyLimit:         10,
		OpenPositionsLimit: 5,
		MaxLeverage:        5,
	}
	inv.EnsurePositions()
	return inv
}

func defaultParams() domain.StrategyParams {
	return domain.StrategyParams{
		EntryRetraceLimit:       0.10,
		PeakRetraceLimit:        0.5,
		PartialRetraceThreshold: 0.03,
		PartialLiquidatePct:     50,
	}
}

func newFixture(t *testing.T, inv *domain.Investor, start, end time.Time,
	signals map[time.Time][]domain.Signal,
	candles map[string]map[time.Time]domain.Candle,
	params domain.StrategyParams) *fixture {
	t.Helper()

	ops := &fakeOperationStore{}
	events := &fakeEventStore{}
	investors := &fakeInvestorStore{}

	recorder, err := NewEventRecorder(events, 1, zerolog.Nop())
	if err != nil {
		t.Fatalf("event recorder: %v", err)
	}
	positions, err := NewPositionService(ops, recorder, zerolog.Nop())
	if err != nil {
		t.Fatalf("position service: %v", err)
	}

	sim, err := NewSimulator(SimulatorDeps{
		Investor:   inv,
		Start:      start,
		End:        end,
		Signals:    &fakeSignalSource{byMinute: signals},
		Candles:    &fakeCandleSource{candles: candles},
		Strategies: &fakeStrategySource{params: map[int64]domain.StrategyParams{1: params}},
		Positions:  positions,
		Events:     recorder,
		Investors:  investors,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}

	return &fixture{
		sim:       sim,
		inv:       inv,
		ops:       ops,
		events:    events,
		investors: investors,
		recorder:  recorder,
		positions: positions,
	}
}
