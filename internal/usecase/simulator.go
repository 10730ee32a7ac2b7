package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

const (
	// Progress is reported every 5 simulated hours.
	progressLogEveryMinutes = 300

	// Rejection reasons recorded on the audit log.
	rejectTargetBelowMinimum   = "target notional below minimum"
	rejectInsufficientCapital  = "insufficient capital"
	rejectDailyLimitReached    = "daily trade limit reached"
	rejectOpenLimitReached     = "open positions limit reached"
	rejectCandleNotFound       = "candle not found"
	rejectOpeningCandleMissing = "opening candle id not found"
	rejectSlippage             = "slippage error"
	rejectSizeLimitReached     = "position size limit reached"
	rejectNoCapitalForDCA      = "insufficient capital for DCA"
)

// Simulator replays one investor's timeline minute by minute: it drains the
// confirmation queue, routes fresh signals into position opens or DCA fills,
// evaluates exit conditions on every open position and finalizes unrealized
// P&L at the end of the window. A run is fully sequential; concurrent runs
// for different investors share nothing.
type Simulator struct {
	inv        *domain.Investor
	start, end time.Time

	signals    domain.SignalSource
	candles    domain.CandleSource
	strategies domain.StrategySource
	positions  *PositionService
	events     *EventRecorder
	investors  domain.InvestorStore
	queue      *ConfirmationQueue

	confirmationRules []domain.ConfirmationRule
	processed         map[int64]struct{}
	paramsCache       map[int64]domain.StrategyParams
	logger            zerolog.Logger
}

type SimulatorDeps struct {
	Investor          *domain.Investor
	Start             time.Time
	End               time.Time
	Signals           domain.SignalSource
	Candles           domain.CandleSource
	Strategies        domain.StrategySource
	Positions         *PositionService
	Events            *EventRecorder
	Investors         domain.InvestorStore
	ConfirmationRules []domain.ConfirmationRule
	Logger            zerolog.Logger
}

func NewSimulator(deps SimulatorDeps) (*Simulator, error) {
	if deps.Investor == nil {
		return nil, errors.New("investor required")
	}
	if deps.Signals == nil || deps.Candles == nil || deps.Strategies == nil {
		return nil, errors.New("signal, candle and strategy sources required")
	}
	if deps.Positions == nil {
		return nil, errors.New("position service required")
	}
	if deps.Events == nil {
		return nil, errors.New("event recorder required")
	}
	if deps.Investors == nil {
		return nil, errors.New("investor store required")
	}
	if deps.End.Before(deps.Start) {
		return nil, fmt.Errorf("simulation end %s before start %s", deps.End, deps.Start)
	}

	deps.Investor.EnsurePositions()

	return &Simulator{
		inv:               deps.Investor,
		start:             deps.Start,
		end:               deps.End,
		signals:           deps.Signals,
		candles:           deps.Candles,
		strategies:        deps.Strategies,
		positions:         deps.Positions,
		events:            deps.Events,
		investors:         deps.Investors,
		queue:             NewConfirmationQueue(deps.Candles, deps.Events, deps.Logger),
		confirmationRules: deps.ConfirmationRules,
		processed:         make(map[int64]struct{}),
		paramsCache:       make(map[int64]domain.StrategyParams),
		logger:            deps.Logger.With().Int64("investor", deps.Investor.ID).Logger(),
	}, nil
}

// Run executes the full simulation. It returns an error only on critical
// failures (unresolvable strategy parameters, failed durable position
// create); business rejections and best-effort write failures never abort.
func (s *Simulator) Run(ctx context.Context) error {
	totalMinutes := int(s.end.Sub(s.start).Minutes()) + 1
	s.logger.Info().
		Time("start", s.start).Time("end", s.end).Int("minutes", totalMinutes).
		Float64("capital", s.inv.CurrentCapital).
		Msg("simulation started")

	minute := 0
	for ts := s.start; !ts.After(s.end); ts = ts.Add(time.Minute) {
		if minute%progressLogEveryMinutes == 0 {
			s.logger.Info().
				Time("minute", ts).Int("processed", minute).Int("total", totalMinutes).
				Float64("capital", s.inv.CurrentCapital).
				Msg("simulation progress")
		}
		minute++

		for _, sig := range s.queue.Process(ctx, ts, s.inv) {
			if s.alreadyProcessed(sig.ID) {
				continue
			}
			if err := s.attemptTrade(ctx, sig, ts); err != nil {
				return err
			}
			s.processed[sig.ID] = struct{}{}
		}

		fresh, err := s.signals.SignalsAt(ctx, ts)
		if err != nil {
			s.logger.Warn().Err(err).Time("minute", ts).Msg("signal lookup failed")
		}
		for _, sig := range fresh {
			if s.alreadyProcessed(sig.ID) {
				continue
			}
			if sig.RequiresConfirmation {
				s.queue.Enqueue(sig, s.confirmationRules)
				s.events.Record(ctx, domain.SimEvent{
					Timestamp:  ts,
					InvestorID: s.inv.ID,
					SignalID:   sig.ID,
					StrategyID: sig.StrategyID,
					Ticker:     sig.Ticker,
					Side:       sig.Side,
					Type:       domain.EventAwaitingConfirmation,
					Detail:     fmt.Sprintf("awaiting confirmation for %s %s", sig.Ticker, sig.Side),
				})
				continue
			}
			if err := s.attemptTrade(ctx, sig, ts); err != nil {
				return err
			}
			s.processed[sig.ID] = struct{}{}
		}

		if err := s.evaluateExits(ctx, ts); err != nil {
			return err
		}
	}

	s.finalizeUnrealized(ctx)
	s.events.Flush(ctx)
	if err := s.investors.PersistCapital(ctx, s.inv.ID, s.inv.CurrentCapital); err != nil {
		s.logger.Error().Err(err).Msg("persist final capital failed")
	}

	s.logger.Info().Float64("capital", s.inv.CurrentCapital).Msg("simulation finished")
	return nil
}

func (s *Simulator) alreadyProcessed(signalID int64) bool {
	_, ok := s.processed[signalID]
	return ok
}

// attemptTrade applies the open-or-DCA algorithm for one signal. All
// business rejections are recorded as events and return nil; only a failed
// durable create propagates.
func (s *Simulator) attemptTrade(ctx context.Context, sig domain.Signal, ts time.Time) error {
	if s.inv.ResetDailyCounters(ts) {
		s.logger.Info().Time("minute", ts).Msg("daily counters reset")
	}

	target := s.inv.TargetNotional()
	if target < s.inv.SizeMin {
		s.reject(ctx, sig, rejectTargetBelowMinimum,
			fmt.Sprintf("target %.2f below minimum %.2f", target, s.inv.SizeMin))
		return nil
	}
	if s.inv.CurrentCapital < target {
		s.reject(ctx, sig, rejectInsufficientCapital,
			fmt.Sprintf("needed %.2f, available %.2f", target, s.inv.CurrentCapital))
		return nil
	}
	if s.inv.PositionsOpenToday >= s.inv.DailyLimit {
		s.reject(ctx, sig, rejectDailyLimitReached,
			fmt.Sprintf("%d/%d trades today", s.inv.PositionsOpenToday, s.inv.DailyLimit))
		return nil
	}

	key := domain.PositionKey{Ticker: sig.Ticker, Side: sig.Side}
	existing, hasPosition := s.inv.OpenPositions[key]

	// DCA into an existing key is exempt from the open-positions limit.
	if !hasPosition && len(s.inv.OpenPositions) >= s.inv.OpenPositionsLimit {
		s.reject(ctx, sig, rejectOpenLimitReached,
			fmt.Sprintf("%d/%d positions open", len(s.inv.OpenPositions), s.inv.OpenPositionsLimit))
		return nil
	}

	candle, ok, err := s.candles.CandleExtremes(ctx, sig.Ticker, ts)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", sig.Ticker).Time("minute", ts).Msg("candle lookup failed")
		ok = false
	}
	if !ok || candle.Close == 0 {
		s.reject(ctx, sig, rejectCandleNotFound,
			fmt.Sprintf("no candle for %s at %s", sig.Ticker, ts.Format(time.RFC3339)))
		return nil
	}

	fillPrice, err := domain.ApplySlippage(candle.Close, s.inv.SlippagePct, sig.Side)
	if err != nil {
		s.reject(ctx, sig, rejectSlippage, err.Error())
		return nil
	}

	if hasPosition {
		return s.applyDCAFill(ctx, sig, existing, fillPrice, target)
	}
	return s.openNewPosition(ctx, sig, key, fillPrice, target, ts)
}

func (s *Simulator) applyDCAFill(ctx context.Context, sig domain.Signal, op *domain.Operation, fillPrice, target float64) error {
	headroom := s.inv.SizeMax - op.RiskCapitalUsed
	if headroom <= 0 {
		s.reject(ctx, sig, rejectSizeLimitReached,
			fmt.Sprintf("position at %.2f of max %.2f", op.RiskCapitalUsed, s.inv.SizeMax))
		return nil
	}

	amount := target
	if amount > headroom {
		amount = headroom
	}
	if s.inv.CurrentCapital < amount {
		s.reject(ctx, sig, rejectNoCapitalForDCA,
			fmt.Sprintf("needed %.2f, available %.2f", amount, s.inv.CurrentCapital))
		return nil
	}

	quantity := amount / fillPrice
	s.positions.ApplyDCA(ctx, op, fillPrice, quantity)
	s.inv.CurrentCapital -= amount
	s.inv.PositionsOpenToday++

	s.events.Record(ctx, domain.SimEvent{
		Timestamp:       sig.Timestamp,
		InvestorID:      s.inv.ID,
		SignalID:        sig.ID,
		OperationID:     op.ID,
		StrategyID:      sig.StrategyID,
		Ticker:          sig.Ticker,
		Side:            sig.Side,
		Type:            domain.EventDCA,
		Quantity:        quantity,
		EntryPrice:      fillPrice,
		SignalPrice:     sig.Price,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		StopLossPct:     op.StopLossPct,
		TakeProfitPct:   op.TakeProfitPct,
		CapitalBefore:   s.inv.CurrentCapital + amount,
		CapitalAfter:    s.inv.CurrentCapital,
		SequenceNumber:  op.EntryCount,
		OpeningCandleID: op.OpeningCandleID,
		Context:         sig.RawPayload,
		Detail: fmt.Sprintf("dca %s | +%.6f @ %v | amount=%.2f",
			sig.Ticker, quantity, fillPrice, amount),
	})

	s.logger.Info().
		Str("ticker", sig.Ticker).Str("side", string(sig.Side)).
		Float64("quantity", quantity).Float64("price", fillPrice).Float64("amount", amount).
		Msg("dca applied")
	return nil
}

func (s *Simulator) openNewPosition(ctx context.Context, sig domain.Signal, key domain.PositionKey, fillPrice, target float64, ts time.Time) error {
	if s.inv.CurrentCapital < target {
		s.reject(ctx, sig, rejectInsufficientCapital,
			fmt.Sprintf("needed %.2f, available %.2f", target, s.inv.CurrentCapital))
		return nil
	}

	leverage := s.inv.MaxLeverage
	if s.inv.UseSignalLeverage {
		leverage = sig.Leverage
		if leverage <= 0 {
			leverage = 1
		}
		if leverage > s.inv.MaxLeverage {
			leverage = s.inv.MaxLeverage
		}
	}

	candleID, ok, err := s.candles.CandleID(ctx, sig.Ticker, ts)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", sig.Ticker).Time("minute", ts).Msg("candle id lookup failed")
		ok = false
	}
	if !ok {
		s.reject(ctx, sig, rejectOpeningCandleMissing,
			fmt.Sprintf("no candle id for %s at %s", sig.Ticker, ts.Format(time.RFC3339)))
		return nil
	}

	quantity := target / fillPrice
	op, err := s.positions.Open(ctx, OpenParams{
		SignalID:        sig.ID,
		StrategyID:      sig.StrategyID,
		InvestorID:      s.inv.ID,
		Ticker:          sig.Ticker,
		Side:            sig.Side,
		EntryPrice:      fillPrice,
		Quantity:        quantity,
		Leverage:        leverage,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		OpenedAt:        sig.Timestamp,
		OpeningCandleID: candleID,
	})
	if err != nil {
		return err
	}

	s.inv.OpenPositions[key] = op
	s.inv.CurrentCapital -= target
	s.inv.PositionsOpenToday++

	s.events.Record(ctx, domain.SimEvent{
		Timestamp:       sig.Timestamp,
		InvestorID:      s.inv.ID,
		SignalID:        sig.ID,
		OperationID:     op.ID,
		StrategyID:      sig.StrategyID,
		Ticker:          sig.Ticker,
		Side:            sig.Side,
		Type:            domain.EventOpen,
		Quantity:        quantity,
		EntryPrice:      fillPrice,
		SignalPrice:     sig.Price,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		StopLossPct:     op.StopLossPct,
		TakeProfitPct:   op.TakeProfitPct,
		CapitalBefore:   s.inv.CurrentCapital + target,
		CapitalAfter:    s.inv.CurrentCapital,
		SequenceNumber:  op.EntryCount,
		OpeningCandleID: candleID,
		Context:         sig.RawPayload,
		Detail: fmt.Sprintf("open %s %s | %.6f @ %v | amount=%.2f",
			sig.Ticker, sig.Side, quantity, fillPrice, target),
	})
	return nil
}

func (s *Simulator) reject(ctx context.Context, sig domain.Signal, reason, detail string) {
	s.events.Record(ctx, domain.SimEvent{
		Timestamp:    sig.Timestamp,
		InvestorID:   s.inv.ID,
		SignalID:     sig.ID,
		StrategyID:   sig.StrategyID,
		Ticker:       sig.Ticker,
		Side:         sig.Side,
		Type:         domain.EventRejection,
		RejectReason: reason,
		Detail:       detail,
	})
	s.logger.Info().
		Int64("signal", sig.ID).Str("ticker", sig.Ticker).Str("reason", reason).
		Msg("signal rejected")
}

// strategyParams resolves and caches the exit parameters for a strategy.
// Parameters are assumed immutable for the duration of a run.
func (s *Simulator) strategyParams(ctx context.Context, strategyID int64) (domain.StrategyParams, error) {
	if params, ok := s.paramsCache[strategyID]; ok {
		return params, nil
	}
	params, err := s.strategies.Params(ctx, strategyID)
	if err != nil {
		return domain.StrategyParams{}, fmt.Errorf("strategy %d parameters: %w", strategyID, err)
	}
	s.paramsCache[strategyID] = params
	return params, nil
}

// finalizeUnrealized computes unrealized P&L for positions still open at the
// end of the window, valued at the final timestamp's close.
func (s *Simulator) finalizeUnrealized(ctx context.Context) {
	for _, op := range s.inv.OpenPositions {
		candle, ok, err := s.candles.CandleExtremes(ctx, op.Ticker, s.end)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", op.Ticker).Msg("final candle lookup failed")
			continue
		}
		if !ok || candle.Close == 0 {
			continue
		}

		op.UnrealizedPnL = op.ComputeResult(candle.Close)
		if err := s.ops().UpdateUnrealizedPnL(ctx, op.ID, op.UnrealizedPnL); err != nil {
			s.logger.Warn().Err(err).Int64("operation", op.ID).Msg("update unrealized pnl failed")
		}

		s.events.Record(ctx, domain.SimEvent{
			Timestamp:     s.end,
			InvestorID:    s.inv.ID,
			SignalID:      op.SignalID,
			OperationID:   op.ID,
			StrategyID:    op.StrategyID,
			Ticker:        op.Ticker,
			Side:          op.Side,
			Type:          domain.EventUnrealizedPnLSnapshot,
			Quantity:      op.Quantity,
			ClosePrice:    candle.Close,
			Result:        op.UnrealizedPnL,
			CapitalBefore: s.inv.CurrentCapital,
			CapitalAfter:  s.inv.CurrentCapital,
			Detail:        fmt.Sprintf("unrealized pnl %+.2f at simulation end", op.UnrealizedPnL),
		})
	}
}

func (s *Simulator) ops() domain.OperationStore {
	return s.positions.ops
}
