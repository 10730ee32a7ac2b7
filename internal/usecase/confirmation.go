package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trading_simulator/internal/domain"
)

type pendingSignal struct {
	signal domain.Signal
	rules  []domain.ConfirmationRule
	// Assigned on first evaluation, not on enqueue, so waiting time is
	// measured in simulated minutes actually processed.
	enteredAt time.Time
}

// ConfirmationQueue stages signals whose execution is delayed until
// rule-based confirmation. Signals leave the queue either confirmed (all
// rules satisfied) or rejected (a max-wait rule expired); otherwise they
// stay queued for the next minute.
type ConfirmationQueue struct {
	candles domain.CandleSource
	events  *EventRecorder
	pending []*pendingSignal
	logger  zerolog.Logger
}

func NewConfirmationQueue(candles domain.CandleSource, events *EventRecorder, logger zerolog.Logger) *ConfirmationQueue {
	return &ConfirmationQueue{
		candles: candles,
		events:  events,
		logger:  logger,
	}
}

func (q *ConfirmationQueue) Enqueue(sig domain.Signal, rules []domain.ConfirmationRule) {
	q.pending = append(q.pending, &pendingSignal{signal: sig, rules: rules})
	q.logger.Info().Int64("signal", sig.ID).Str("ticker", sig.Ticker).Msg("signal queued for confirmation")
}

func (q *ConfirmationQueue) Len() int {
	return len(q.pending)
}

// Process evaluates every queued signal against its rules at the given
// minute and returns the confirmed ones.
func (q *ConfirmationQueue) Process(ctx context.Context, ts time.Time, inv *domain.Investor) []domain.Signal {
	var confirmed []domain.Signal
	var remaining []*pendingSignal

	for _, item := range q.pending {
		if item.enteredAt.IsZero() {
			item.enteredAt = ts
		}
		waitedMinutes := ts.Sub(item.enteredAt).Minutes()

		satisfied := true
		rejected := false
		for _, rule := range item.rules {
			switch rule.Kind {
			case domain.RuleMaxWaitMinutes:
				if waitedMinutes > rule.Value {
					rejected = true
					q.events.Record(ctx, domain.SimEvent{
						Timestamp:    ts,
						InvestorID:   inv.ID,
						SignalID:     item.signal.ID,
						StrategyID:   item.signal.StrategyID,
						Ticker:       item.signal.Ticker,
						Side:         item.signal.Side,
						Type:         domain.EventConfirmationRejected,
						RejectReason: fmt.Sprintf("confirmation wait exceeded: %.1f min > %.0f min", waitedMinutes, rule.Value),
					})
					q.logger.Info().Int64("signal", item.signal.ID).Float64("waited_min", waitedMinutes).Msg("signal dropped, confirmation wait exceeded")
				}
			case domain.RulePriceAdvancePct:
				candle, ok, err := q.candles.CandleExtremes(ctx, item.signal.Ticker, ts)
				if err != nil {
					q.logger.Warn().Err(err).Str("ticker", item.signal.Ticker).Msg("candle lookup failed during confirmation")
					satisfied = false
					break
				}
				if !ok || candle.High <= item.signal.Price*(1+rule.Value/100) {
					satisfied = false
				}
			}
			if rejected || !satisfied {
				break
			}
		}

		switch {
		case rejected:
			// dropped
		case satisfied:
			confirmed = append(confirmed, item.signal)
			q.events.Record(ctx, domain.SimEvent{
				Timestamp:  ts,
				InvestorID: inv.ID,
				SignalID:   item.signal.ID,
				StrategyID: item.signal.StrategyID,
				Ticker:     item.signal.Ticker,
				Side:       item.signal.Side,
				Type:       domain.EventSignalConfirmed,
				Detail:     fmt.Sprintf("signal confirmed after %.1f minutes", waitedMinutes),
			})
			q.logger.Info().Int64("signal", item.signal.ID).Float64("waited_min", waitedMinutes).Msg("signal confirmed")
		default:
			remaining = append(remaining, item)
		}
	}

	q.pending = remaining
	return confirmed
}
