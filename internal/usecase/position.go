package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

// PositionService drives the lifecycle of a single position: build-then-commit
// opening, extreme-price tracking, DCA accumulation and partial/total closes.
// Only the initial durable create is allowed to fail the run; every later
// field update is best-effort.
type PositionService struct {
	ops    domain.OperationStore
	events *EventRecorder
	logger zerolog.Logger
}

func NewPositionService(ops domain.OperationStore, events *EventRecorder, logger zerolog.Logger) (*PositionService, error) {
	if ops == nil {
		return nil, errors.New("operation store required")
	}
	if events == nil {
		return nil, errors.New("event recorder required")
	}
	return &PositionService{ops: ops, events: events, logger: logger}, nil
}

// OpenParams carries everything needed to build a new position in memory.
type OpenParams struct {
	SignalID        int64
	StrategyID      int64
	InvestorID      int64
	Ticker          string
	Side            domain.Side
	EntryPrice      float64
	Quantity        float64
	Leverage        float64
	StopLoss        float64
	TakeProfit      float64
	OpenedAt        time.Time
	OpeningCandleID int64
	ParentID        *int64
}

// Open builds the position in memory and commits it through the store.
// A create failure propagates: without a durable identity the position
// would corrupt all downstream accounting.
func (s *PositionService) Open(ctx context.Context, p OpenParams) (*domain.Operation, error) {
	op := &domain.Operation{
		SignalID:        p.SignalID,
		StrategyID:      p.StrategyID,
		InvestorID:      p.InvestorID,
		Ticker:          p.Ticker,
		Side:            p.Side,
		EntryPrice:      p.EntryPrice,
		Quantity:        p.Quantity,
		Leverage:        p.Leverage,
		StopLoss:        p.StopLoss,
		TakeProfit:      p.TakeProfit,
		OpenedAt:        p.OpenedAt,
		Status:          domain.StatusOpen,
		ParentID:        p.ParentID,
		OpeningCandleID: p.OpeningCandleID,
		PeakPrice:       p.EntryPrice,
		TroughPrice:     p.EntryPrice,
		EntryCount:      1,
	}
	op.RecomputeDerived()
	if p.EntryPrice > 0 {
		op.StopLossPct = math.Abs((p.EntryPrice-p.StopLoss)/p.EntryPrice) * 100
		op.TakeProfitPct = math.Abs((p.TakeProfit-p.EntryPrice)/p.EntryPrice) * 100
	}

	id, err := s.ops.CreateOperation(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("create operation %s %s: %w", p.Ticker, p.Side, err)
	}
	op.ID = id

	s.logger.Info().
		Str("ticker", op.Ticker).Str("side", string(op.Side)).
		Float64("quantity", op.Quantity).Float64("price", op.EntryPrice).
		Float64("sl", op.StopLoss).Float64("tp", op.TakeProfit).
		Int64("opening_candle", op.OpeningCandleID).
		Msg("position opened")
	return op, nil
}

// TrackPrice feeds the timestep's close price into the position's running
// extreme. Must run before exit evaluation so protection rules see current
// data. The durable update is best-effort.
func (s *PositionService) TrackPrice(ctx context.Context, op *domain.Operation, price float64) {
	if !op.TrackPrice(price) {
		return
	}
	if err := s.ops.UpdateExtremes(ctx, op.ID, op.PeakPrice, op.TroughPrice); err != nil {
		s.logger.Warn().Err(err).Int64("operation", op.ID).Msg("update extremes failed")
	}
}

// ApplyDCA accumulates an additional fill. The caller records the audit
// event, since only it knows the capital context of the fill.
func (s *PositionService) ApplyDCA(ctx context.Context, op *domain.Operation, price, quantity float64) {
	op.ApplyDCA(price, quantity)
	if err := s.ops.UpdateDCA(ctx, op); err != nil {
		s.logger.Warn().Err(err).Int64("operation", op.ID).Msg("update dca failed")
	}
}

// ClosePartial liquidates liquidatePct percent of the position at the given
// price and spins the remainder into a child position that inherits entry
// price, SL/TP, leverage and opening context, linked through the parent id.
// The child takes over the investor's open-position slot for the key.
func (s *PositionService) ClosePartial(ctx context.Context, inv *domain.Investor, op *domain.Operation, closePrice, liquidatePct float64, ts time.Time) (*domain.Operation, error) {
	liquidatedQty := op.Quantity * (liquidatePct / 100)
	remainingQty := op.Quantity - liquidatedQty
	partialResult := op.ComputeResult(closePrice) * (liquidatedQty / op.Quantity)

	op.Quantity = remainingQty
	op.RecomputeDerived()
	op.ClosedAt = ts
	op.ClosePrice = closePrice
	op.Result = partialResult
	op.CloseReason = domain.ReasonPartialStopLoss
	op.Status = domain.StatusPartiallyClosed
	if err := s.ops.UpdateClose(ctx, op); err != nil {
		s.logger.Warn().Err(err).Int64("operation", op.ID).Msg("update partial close failed")
	}

	// No capital moves on a partial close: the liquidated slice's realized
	// result is reported, the remaining notional stays committed until the
	// child closes.
	s.events.Record(ctx, domain.SimEvent{
		Timestamp:         ts,
		InvestorID:        inv.ID,
		SignalID:          op.SignalID,
		OperationID:       op.ID,
		ParentOperationID: op.ID,
		StrategyID:        op.StrategyID,
		Ticker:            op.Ticker,
		Side:              op.Side,
		Type:              domain.EventPartialClose,
		Quantity:          liquidatedQty,
		ClosePrice:        closePrice,
		Result:            partialResult,
		CloseReason:       domain.ReasonPartialStopLoss,
		CapitalBefore:     inv.CurrentCapital,
		CapitalAfter:      inv.CurrentCapital,
		StopLoss:          op.StopLoss,
		TakeProfit:        op.TakeProfit,
		StopLossPct:       op.StopLossPct,
		TakeProfitPct:     op.TakeProfitPct,
		PeakPrice:         op.PeakPrice,
		TroughPrice:       op.TroughPrice,
		SequenceNumber:    op.EntryCount,
		Detail: fmt.Sprintf("partial close %.2f%% | result=%+.2f | remaining=%.6f",
			liquidatePct, partialResult, remainingQty),
	})

	parentID := op.ID
	child, err := s.Open(ctx, OpenParams{
		SignalID:        op.SignalID,
		StrategyID:      op.StrategyID,
		InvestorID:      op.InvestorID,
		Ticker:          op.Ticker,
		Side:            op.Side,
		EntryPrice:      op.EntryPrice,
		Quantity:        remainingQty,
		Leverage:        op.Leverage,
		StopLoss:        op.StopLoss,
		TakeProfit:      op.TakeProfit,
		OpenedAt:        op.OpenedAt,
		OpeningCandleID: op.OpeningCandleID,
		ParentID:        &parentID,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn child of operation %d: %w", parentID, err)
	}

	inv.OpenPositions[child.Key()] = child

	s.events.Record(ctx, domain.SimEvent{
		Timestamp:         ts,
		InvestorID:        inv.ID,
		SignalID:          child.SignalID,
		OperationID:       child.ID,
		ParentOperationID: parentID,
		StrategyID:        child.StrategyID,
		Ticker:            child.Ticker,
		Side:              child.Side,
		Type:              domain.EventChildOpen,
		Quantity:          child.Quantity,
		EntryPrice:        child.EntryPrice,
		StopLoss:          child.StopLoss,
		TakeProfit:        child.TakeProfit,
		StopLossPct:       child.StopLossPct,
		TakeProfitPct:     child.TakeProfitPct,
		SequenceNumber:    child.EntryCount,
		OpeningCandleID:   child.OpeningCandleID,
		CapitalBefore:     inv.CurrentCapital,
		CapitalAfter:      inv.CurrentCapital,
		Detail:            fmt.Sprintf("child position after partial close of %d", parentID),
	})

	return child, nil
}

// CloseTotal terminates the position and returns its notional value at the
// close price to the investor's free capital. Leverage amplifies the result
// via quantity, never the capital returned.
func (s *PositionService) CloseTotal(ctx context.Context, inv *domain.Investor, op *domain.Operation, closePrice float64, reason string, ts time.Time, closingCandleID int64) {
	op.ClosedAt = ts
	op.ClosePrice = closePrice
	op.Result = op.ComputeResult(closePrice)
	op.CloseReason = reason
	op.Status = domain.StatusFullyClosed
	op.ClosingCandleID = closingCandleID
	op.DurationMinutes = ts.Sub(op.OpenedAt).Minutes()

	capitalReturned := op.Quantity * closePrice
	inv.CurrentCapital += capitalReturned

	s.events.Record(ctx, domain.SimEvent{
		Timestamp:       ts,
		InvestorID:      inv.ID,
		SignalID:        op.SignalID,
		OperationID:     op.ID,
		StrategyID:      op.StrategyID,
		Ticker:          op.Ticker,
		Side:            op.Side,
		Type:            domain.EventFullClose,
		Quantity:        op.Quantity,
		ClosePrice:      op.ClosePrice,
		SignalPrice:     op.ClosePrice,
		Result:          op.Result,
		CloseReason:     reason,
		CapitalBefore:   inv.CurrentCapital - capitalReturned,
		CapitalAfter:    inv.CurrentCapital,
		StopLoss:        op.StopLoss,
		TakeProfit:      op.TakeProfit,
		StopLossPct:     op.StopLossPct,
		TakeProfitPct:   op.TakeProfitPct,
		PeakPrice:       op.PeakPrice,
		TroughPrice:     op.TroughPrice,
		DurationMinutes: op.DurationMinutes,
		SequenceNumber:  op.EntryCount,
		ClosingCandleID: closingCandleID,
		Detail: fmt.Sprintf("full close: %s | result=%+.2f | price=%v | duration=%.1f min",
			reason, op.Result, op.ClosePrice, op.DurationMinutes),
	})

	if err := s.ops.UpdateClose(ctx, op); err != nil {
		s.logger.Warn().Err(err).Int64("operation", op.ID).Msg("update close failed")
	}

	s.logger.Info().
		Str("ticker", op.Ticker).Str("side", string(op.Side)).
		Str("reason", reason).Float64("result", op.Result).
		Msg("position closed")
}
