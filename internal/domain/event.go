package domain

import "time"

type EventType string

const (
	EventOpen                  EventType = "open"
	EventChildOpen             EventType = "child_open"
	EventDCA                   EventType = "dca"
	EventPartialClose          EventType = "partial_close"
	EventFullClose             EventType = "full_close"
	EventRejection             EventType = "rejection"
	EventAwaitingConfirmation  EventType = "awaiting_confirmation"
	EventSignalConfirmed       EventType = "signal_confirmed"
	EventConfirmationRejected  EventType = "confirmation_rejected"
	EventUnrealizedPnLSnapshot EventType = "unrealized_pnl"
)

// Close reasons are part of the persisted ledger contract and keep their
// historical wording.
const (
	ReasonTakeProfit      = "Take Profit"
	ReasonEntryRetrace    = "Retroceso desde apertura"
	ReasonPeakRetrace     = "Retroceso desde máximo"
	ReasonTroughRetrace   = "Retroceso desde mínimo"
	ReasonPartialStopLoss = "Liquidación parcial por SL"
	ReasonStopLoss        = "Stop Loss"
)

// SimEvent is one append-only audit record. Zero-valued fields are simply
// absent for the event type in question.
type SimEvent struct {
	Timestamp         time.Time
	InvestorID        int64
	SignalID          int64
	OperationID       int64
	ParentOperationID int64
	StrategyID        int64
	Ticker            string
	Side              Side
	Type              EventType
	Detail            string
	RejectReason      string

	CapitalBefore float64
	CapitalAfter  float64

	SignalPrice float64
	StopLoss    float64
	TakeProfit  float64
	Quantity    float64
	EntryPrice  float64
	ClosePrice  float64
	Result      float64
	CloseReason string

	DurationMinutes float64
	StopLossPct     float64
	TakeProfitPct   float64
	PeakPrice       float64
	TroughPrice     float64
	SequenceNumber  int
	OpeningCandleID int64
	ClosingCandleID int64

	Context []byte
}
