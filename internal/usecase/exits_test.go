package usecase

import (
	"context"
	"math"
	"testing"
	"time"

	"trading_simulator/internal/domain"
)

func openPosition(f *fixture, t *testing.T, entry, qty, sl, tp float64) *domain.Operation {
	t.Helper()
	return openSidePosition(f, t, domain.SideLong, entry, qty, sl, tp)
}

func openSidePosition(f *fixture, t *testing.T, side domain.Side, entry, qty, sl, tp float64) *domain.Operation {
	t.Helper()
	op, err := f.positions.Open(context.Background(), OpenParams{
		SignalID:   1,
		StrategyID: 1,
		InvestorID: f.inv.ID,
		Ticker:     "BTCUSDT",
		Side:       side,
		EntryPrice: entry,
		Quantity:   qty,
		Leverage:   1,
		StopLoss:   sl,
		TakeProfit: tp,
		OpenedAt:   baseMinute,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.inv.OpenPositions[op.Key()] = op
	return op
}

func TestExitTakeProfitBeatsStopLoss(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 111, Low: 89, Close: 105},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	openPosition(f, t, 100, 10, 90, 110)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 {
		t.Fatalf("expected 1 close, got %d", len(closes))
	}
	if closes[0].CloseReason != domain.ReasonTakeProfit {
		t.Fatalf("take profit must win over stop loss, got %q", closes[0].CloseReason)
	}
}

func TestExitEntryRetrace(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 100, Low: 89, Close: 89.5},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	openPosition(f, t, 100, 10, 85, 120)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 || closes[0].CloseReason != domain.ReasonEntryRetrace {
		t.Fatalf("expected entry retrace close, got %+v", closes)
	}
	if len(f.inv.OpenPositions) != 0 {
		t.Fatal("position must be released")
	}
}

func TestExitTrailingRequiresActivation(t *testing.T) {
	t1 := baseMinute.Add(time.Minute)
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 101.5, Low: 100.2, Close: 101.5},
		domain.Candle{ID: 2, High: 103, Low: 101.4, Close: 103},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, t1, nil, candles, defaultParams())
	op := openPosition(f, t, 100, 10, 90, 110)

	// Peak at 101.5 is below the 20% activation level of 102: a retrace
	// that would satisfy the trailing rule must not close yet.
	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(f.inv.OpenPositions) != 1 {
		t.Fatal("trailing rule fired before activation")
	}
	if op.PeakPrice != 101.5 {
		t.Fatalf("expected tracked peak 101.5, got %v", op.PeakPrice)
	}

	// Peak 103 arms the rule; permitted retrace is half of the 3-point
	// advance, so a dip to 101.4 crosses the 101.5 floor.
	if err := f.sim.evaluateExits(context.Background(), t1); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 || closes[0].CloseReason != domain.ReasonPeakRetrace {
		t.Fatalf("expected peak retrace close, got %+v", closes)
	}
}

func TestExitShortTakeProfitBeatsStopLoss(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 111, Low: 89, Close: 95},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	openSidePosition(f, t, domain.SideShort, 100, 10, 110, 90)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 {
		t.Fatalf("expected 1 close, got %d", len(closes))
	}
	if closes[0].CloseReason != domain.ReasonTakeProfit {
		t.Fatalf("take profit must win over stop loss on a short, got %q", closes[0].CloseReason)
	}
}

func TestExitShortEntryRetrace(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 111, Low: 100, Close: 110},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	openSidePosition(f, t, domain.SideShort, 100, 10, 115, 80)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 || closes[0].CloseReason != domain.ReasonEntryRetrace {
		t.Fatalf("expected mirrored entry retrace close, got %+v", closes)
	}
}

func TestExitShortTrailingRequiresActivation(t *testing.T) {
	t1 := baseMinute.Add(time.Minute)
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 99.3, Low: 98.3, Close: 98.5},
		domain.Candle{ID: 2, High: 98.8, Low: 97.3, Close: 97.5},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, t1, nil, candles, defaultParams())
	op := openSidePosition(f, t, domain.SideShort, 100, 10, 110, 90)

	// Trough at 98.5 is above the 20% activation level of 98: a bounce
	// that would satisfy the trailing rule must not close yet.
	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(f.inv.OpenPositions) != 1 {
		t.Fatal("trailing rule fired before activation on a short")
	}
	if op.TroughPrice != 98.5 {
		t.Fatalf("expected tracked trough 98.5, got %v", op.TroughPrice)
	}

	// Trough 97.5 arms the rule; permitted retrace is half of the
	// 2.5-point advance, so a bounce to 98.8 crosses the 98.75 ceiling.
	if err := f.sim.evaluateExits(context.Background(), t1); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 || closes[0].CloseReason != domain.ReasonTroughRetrace {
		t.Fatalf("expected trough retrace close, got %+v", closes)
	}
}

func TestExitPartialStopLoss(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 100, Low: 96.5, Close: 97},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	parent := openPosition(f, t, 100, 10, 80, 120)
	capitalBefore := f.inv.CurrentCapital

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if parent.Status != domain.StatusPartiallyClosed {
		t.Fatalf("expected parent partially closed, got %q", parent.Status)
	}
	child := f.inv.OpenPositions[parent.Key()]
	if child == nil || child.ID == parent.ID {
		t.Fatal("child must replace the parent in the open slot")
	}
	if !child.IsChild() || *child.ParentID != parent.ID {
		t.Fatalf("child must link to parent %d, got %+v", parent.ID, child.ParentID)
	}
	if math.Abs(child.Quantity-5) > 1e-9 {
		t.Fatalf("expected half the quantity on the child, got %v", child.Quantity)
	}
	if child.EntryPrice != parent.EntryPrice || child.StopLoss != parent.StopLoss || child.TakeProfit != parent.TakeProfit {
		t.Fatal("child must inherit entry, stop loss and take profit")
	}
	if f.inv.CurrentCapital != capitalBefore {
		t.Fatalf("partial close must not move capital, got %v", f.inv.CurrentCapital)
	}

	partials := f.events.eventsOfType(domain.EventPartialClose)
	if len(partials) != 1 {
		t.Fatalf("expected 1 partial close event, got %d", len(partials))
	}
	if math.Abs(partials[0].Result-(-15)) > 1e-9 {
		t.Fatalf("expected partial result -15, got %v", partials[0].Result)
	}
}

func TestExitChildExemptFromPartialStopLoss(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 100, Low: 96.5, Close: 97},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	op := openPosition(f, t, 100, 5, 80, 120)
	parentID := int64(99)
	op.ParentID = &parentID

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if op.Status != domain.StatusOpen {
		t.Fatalf("child must stay open, got %q", op.Status)
	}
	if got := len(f.events.eventsOfType(domain.EventPartialClose)); got != 0 {
		t.Fatalf("child must never partially close, got %d events", got)
	}
}

func TestExitTrailingArmedSuppressesPartial(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 100, Low: 96.5, Close: 97},
	)
	params := defaultParams()
	params.PeakRetraceLimit = 5
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, params)
	op := openPosition(f, t, 100, 10, 80, 110)
	op.PeakPrice = 104

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if op.Status != domain.StatusOpen {
		t.Fatalf("expected position still open, got %q", op.Status)
	}
	if got := len(f.events.eventsOfType(domain.EventPartialClose)); got != 0 {
		t.Fatalf("armed trailing protection must suppress partial liquidation, got %d events", got)
	}
}

func TestExitFullStopLoss(t *testing.T) {
	candles := minuteCandles("BTCUSDT",
		domain.Candle{ID: 1, High: 100, Low: 97.9, Close: 98},
	)
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, candles, defaultParams())
	openPosition(f, t, 100, 10, 98, 120)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	closes := f.events.eventsOfType(domain.EventFullClose)
	if len(closes) != 1 || closes[0].CloseReason != domain.ReasonStopLoss {
		t.Fatalf("expected stop loss close, got %+v", closes)
	}
}

func TestExitSkipsMissingCandle(t *testing.T) {
	f := newFixture(t, defaultInvestor(), baseMinute, baseMinute, nil, nil, defaultParams())
	op := openPosition(f, t, 100, 10, 90, 110)

	if err := f.sim.evaluateExits(context.Background(), baseMinute); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if op.Status != domain.StatusOpen {
		t.Fatalf("position must survive a data gap, got %q", op.Status)
	}
}
