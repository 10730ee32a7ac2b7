package domain

import (
	"context"
	"time"
)

// SignalSource yields the signals generated for an exact minute.
type SignalSource interface {
	SignalsAt(ctx context.Context, ts time.Time) ([]Signal, error)
}

// CandleSource answers point lookups against the one-minute OHLCV table.
// A missing candle is a valid outcome (ok == false), not an error.
type CandleSource interface {
	CandleExtremes(ctx context.Context, ticker string, ts time.Time) (Candle, bool, error)
	CandleID(ctx context.Context, ticker string, ts time.Time) (int64, bool, error)
}

// StrategySource resolves the exit-rule parameters of a strategy. A missing,
// inactive or incomplete strategy is an error: the simulation cannot
// continue without these parameters.
type StrategySource interface {
	Params(ctx context.Context, strategyID int64) (StrategyParams, error)
}

// OperationStore persists positions. Create is the only hard dependency:
// an in-memory position without a durable identity corrupts every later
// accounting step, so its failure aborts the run. The update methods are
// best-effort from the simulator's point of view.
type OperationStore interface {
	CreateOperation(ctx context.Context, op *Operation) (int64, error)
	UpdateDCA(ctx context.Context, op *Operation) error
	UpdateClose(ctx context.Context, op *Operation) error
	UpdateExtremes(ctx context.Context, operationID int64, peak, trough float64) error
	UpdateUnrealizedPnL(ctx context.Context, operationID int64, pnl float64) error
}

// EventStore appends audit events in batches.
type EventStore interface {
	AppendEvents(ctx context.Context, events []SimEvent) error
}

// InvestorStore reads active investor configurations and writes the final
// capital of a finished run.
type InvestorStore interface {
	ListActive(ctx context.Context) ([]Investor, error)
	PersistCapital(ctx context.Context, investorID int64, capital float64) error
}
