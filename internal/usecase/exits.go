package usecase

import (
	"context"
	"time"

	"trading_simulator/internal/domain"
)

// minTPAdvance is the fraction of the entry-to-take-profit distance a
// position must have covered before the trailing retrace protection arms.
// Below this threshold the trailing rule stays locked no matter how far the
// extreme has moved.
const minTPAdvance = 0.20

// evaluateExits runs the ordered exit rules against every open position for
// the current minute. The order is part of the contract:
//
//  1. take-profit (terminal)
//  2. retrace from entry (terminal)
//  3. trailing retrace from peak/trough, gated on minTPAdvance (terminal;
//     arming it suppresses rule 4 this minute)
//  4. partial stop-loss liquidation (skipped for children of a prior
//     partial close; the spawned child is evaluated from the next minute)
//  5. full stop-loss (terminal)
//
// The first matching total close wins; later rules are not consulted.
func (s *Simulator) evaluateExits(ctx context.Context, ts time.Time) error {
	open := make([]*domain.Operation, 0, len(s.inv.OpenPositions))
	for _, op := range s.inv.OpenPositions {
		open = append(open, op)
	}

	for _, op := range open {
		candle, ok, err := s.candles.CandleExtremes(ctx, op.Ticker, ts)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", op.Ticker).Time("minute", ts).Msg("candle lookup failed during exit check")
			continue
		}
		if !ok || candle.High == 0 || candle.Low == 0 || candle.Close == 0 {
			continue
		}

		s.positions.TrackPrice(ctx, op, candle.Close)

		candleID, _, err := s.candles.CandleID(ctx, op.Ticker, ts)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", op.Ticker).Msg("closing candle id lookup failed")
		}

		params, err := s.strategyParams(ctx, op.StrategyID)
		if err != nil {
			return err
		}

		// 1. Take-profit.
		if (op.Side == domain.SideLong && candle.High >= op.TakeProfit) ||
			(op.Side == domain.SideShort && candle.Low <= op.TakeProfit) {
			s.closeAndRelease(ctx, op, candle.Close, domain.ReasonTakeProfit, ts, candleID)
			continue
		}

		// 2. Retrace from entry.
		if op.Side == domain.SideLong {
			if (op.EntryPrice-candle.Low)/op.EntryPrice >= params.EntryRetraceLimit {
				s.closeAndRelease(ctx, op, candle.Close, domain.ReasonEntryRetrace, ts, candleID)
				continue
			}
		} else {
			if (candle.High-op.EntryPrice)/op.EntryPrice >= params.EntryRetraceLimit {
				s.closeAndRelease(ctx, op, candle.Close, domain.ReasonEntryRetrace, ts, candleID)
				continue
			}
		}

		// 3. Trailing retrace from the running extreme, armed only after the
		// position has advanced minTPAdvance of the way to its target.
		protected := false
		closed := false
		if op.Side == domain.SideLong && op.PeakPrice > op.EntryPrice {
			activation := op.EntryPrice + minTPAdvance*(op.TakeProfit-op.EntryPrice)
			if op.PeakPrice >= activation {
				protected = true
				permittedRetrace := params.PeakRetraceLimit * (op.PeakPrice - op.EntryPrice)
				if candle.Low <= op.PeakPrice-permittedRetrace {
					s.closeAndRelease(ctx, op, candle.Close, domain.ReasonPeakRetrace, ts, candleID)
					closed = true
				}
			}
		} else if op.Side == domain.SideShort && op.TroughPrice < op.EntryPrice {
			activation := op.EntryPrice - minTPAdvance*(op.EntryPrice-op.TakeProfit)
			if op.TroughPrice <= activation {
				protected = true
				permittedRetrace := params.PeakRetraceLimit * (op.EntryPrice - op.TroughPrice)
				if candle.High >= op.TroughPrice+permittedRetrace {
					s.closeAndRelease(ctx, op, candle.Close, domain.ReasonTroughRetrace, ts, candleID)
					closed = true
				}
			}
		}
		if closed {
			continue
		}

		// 4. Partial stop-loss liquidation. Children are exempt, and the
		// replaced parent is not evaluated further this minute; the child
		// enters evaluation on the next minute's snapshot.
		if !op.IsChild() && !protected {
			retrace := 0.0
			if op.Side == domain.SideLong {
				retrace = (op.EntryPrice - candle.Low) / op.EntryPrice
			} else {
				retrace = (candle.High - op.EntryPrice) / op.EntryPrice
			}
			if retrace >= params.PartialRetraceThreshold {
				if _, err := s.positions.ClosePartial(ctx, s.inv, op, candle.Close, params.PartialLiquidatePct, ts); err != nil {
					return err
				}
				continue
			}
		}

		// 5. Full stop-loss, the last-resort absolute level.
		if (op.Side == domain.SideLong && candle.Low <= op.StopLoss) ||
			(op.Side == domain.SideShort && candle.High >= op.StopLoss) {
			s.closeAndRelease(ctx, op, candle.Close, domain.ReasonStopLoss, ts, candleID)
		}
	}

	return nil
}

func (s *Simulator) closeAndRelease(ctx context.Context, op *domain.Operation, closePrice float64, reason string, ts time.Time, candleID int64) {
	s.positions.CloseTotal(ctx, s.inv, op, closePrice, reason, ts, candleID)
	delete(s.inv.OpenPositions, op.Key())
}
