package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type OperationStatus string

const (
	StatusOpen            OperationStatus = "open"
	StatusPartiallyClosed OperationStatus = "partially_closed"
	StatusFullyClosed     OperationStatus = "fully_closed"
)

// PositionKey identifies the single open position an investor may hold per
// ticker and direction. Additional fills for the same key are averaged into
// the existing position instead of opening a second one.
type PositionKey struct {
	Ticker string
	Side   Side
}

// Signal is a trade signal read from storage, immutable once loaded.
type Signal struct {
	ID                   int64
	StrategyID           int64
	Ticker               string
	Timestamp            time.Time
	Side                 Side
	Price                float64
	TakeProfit           float64
	StopLoss             float64
	Leverage             float64
	RequiresConfirmation bool
	RawPayload           []byte
}

// StrategyParams holds the exit-rule parameters of a strategy. The three
// retrace limits are fractions (0.05 == 5%); PartialLiquidatePct is the
// share of quantity liquidated on a partial stop-loss, in percent units.
type StrategyParams struct {
	EntryRetraceLimit       float64
	PeakRetraceLimit        float64
	PartialRetraceThreshold float64
	PartialLiquidatePct     float64
}

// Candle carries the extremes of a one-minute OHLCV bucket.
type Candle struct {
	ID     int64
	Ticker string
	High   float64
	Low    float64
	Close  float64
}

// ConfirmationRuleKind selects how a queued signal is confirmed or dropped.
type ConfirmationRuleKind string

const (
	// RuleMaxWaitMinutes drops the signal once it has waited longer than
	// Value minutes in the queue.
	RuleMaxWaitMinutes ConfirmationRuleKind = "max_wait_minutes"
	// RulePriceAdvancePct confirms only after the candle high exceeds the
	// signal price by Value percent. Until then the signal stays queued.
	RulePriceAdvancePct ConfirmationRuleKind = "price_advance_pct"
)

type ConfirmationRule struct {
	Kind  ConfirmationRuleKind
	Value float64
}

// Operation is a single leveraged position. It is built in memory first and
// committed through an OperationStore, which assigns its identity.
type Operation struct {
	ID              int64
	SignalID        int64
	StrategyID      int64
	InvestorID      int64
	Ticker          string
	Side            Side
	EntryPrice      float64
	Quantity        float64
	Leverage        float64
	StopLoss        float64
	TakeProfit      float64
	OpenedAt        time.Time
	ClosedAt        time.Time
	ClosePrice      float64
	Result          float64
	CloseReason     string
	Status          OperationStatus
	ParentID        *int64
	OpeningCandleID int64
	ClosingCandleID int64

	// Extremes reached since entry, tracked on candle close prices.
	PeakPrice   float64
	TroughPrice float64

	// Derived metrics, recomputed on every quantity or price mutation.
	RiskCapitalUsed float64
	TotalExposure   float64
	StopLossPct     float64
	TakeProfitPct   float64

	EntryCount      int
	DurationMinutes float64
	UnrealizedPnL   float64
}

func (o *Operation) Key() PositionKey {
	return PositionKey{Ticker: o.Ticker, Side: o.Side}
}

// IsChild reports whether this operation is the remainder of a partial close.
func (o *Operation) IsChild() bool {
	return o.ParentID != nil
}

// TrackPrice advances the running extreme for the operation's direction and
// reports whether it moved. Longs track the peak, shorts the trough.
func (o *Operation) TrackPrice(price float64) bool {
	switch o.Side {
	case SideLong:
		if price > o.PeakPrice {
			o.PeakPrice = price
			return true
		}
	case SideShort:
		if price < o.TroughPrice {
			o.TroughPrice = price
			return true
		}
	}
	return false
}

// ApplyDCA folds an additional fill into the position: the entry price
// becomes the quantity-weighted average of all fills, quantity accumulates
// and derived metrics are recomputed. SL/TP levels are untouched.
func (o *Operation) ApplyDCA(price, quantity float64) {
	o.EntryPrice = WeightedAveragePrice(o.EntryPrice, o.Quantity, price, quantity)
	o.Quantity += quantity
	o.EntryCount++
	o.RecomputeDerived()
}

// ComputeResult returns the raw P&L of exiting the full quantity at the
// given price. Commission and slippage are applied at fill time, not here.
func (o *Operation) ComputeResult(exitPrice float64) float64 {
	if o.Side == SideLong {
		return (exitPrice - o.EntryPrice) * o.Quantity
	}
	return (o.EntryPrice - exitPrice) * o.Quantity
}

// RecomputeDerived refreshes risk capital and notional exposure from the
// current entry price, quantity and leverage.
func (o *Operation) RecomputeDerived() {
	o.RiskCapitalUsed = o.Quantity * o.EntryPrice
	o.TotalExposure = o.RiskCapitalUsed * o.Leverage
}
