package domain

import "time"

// Investor is the capital ledger for one simulation run: contributed and
// current capital, risk limits and the set of currently open positions.
// A fresh ledger is built from stored configuration at the start of each
// run and discarded after final persistence.
type Investor struct {
	ID                 int64
	ContributedCapital float64
	CurrentCapital     float64
	RiskMaxPct         float64
	SizeMin            float64
	SizeMax            float64
	DailyLimit         int
	OpenPositionsLimit int
	MaxLeverage        float64
	CommissionPct      float64
	SlippagePct        float64
	UseSignalLeverage  bool

	PositionsOpenToday int
	LastCounterDate    time.Time
	OpenPositions      map[PositionKey]*Operation
}

// EnsurePositions makes the ledger usable when built from a bare config row.
func (inv *Investor) EnsurePositions() {
	if inv.OpenPositions == nil {
		inv.OpenPositions = make(map[PositionKey]*Operation)
	}
}

// ResetDailyCounters zeroes the daily trade counter when the simulated
// calendar day has changed. Returns true when a reset happened.
func (inv *Investor) ResetDailyCounters(now time.Time) bool {
	day := now.UTC().Truncate(24 * time.Hour)
	if inv.LastCounterDate.Equal(day) {
		return false
	}
	inv.PositionsOpenToday = 0
	inv.LastCounterDate = day
	return true
}

// TargetNotional is the per-fill capital target: the risk percentage of
// contributed capital, capped at SizeMax. A result below SizeMin is not
// raised to the floor; the caller rejects it instead. Risk is always
// computed against contributed capital, not the running balance.
func (inv *Investor) TargetNotional() float64 {
	target := inv.ContributedCapital * (inv.RiskMaxPct / 100)
	if target > inv.SizeMax {
		target = inv.SizeMax
	}
	return target
}
