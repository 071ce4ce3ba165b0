package decision

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
	"github.com/Rajchodisetti/structimb-edge/internal/risk"
)

// ForceExit closes any open position for an external reason such as
// ADAPTER_DISCONNECT. When flat it holds with that reason.
func (e *Engine) ForceExit(snap market.BookSnapshot, why reason.Code) (Decision, error) {
	mid := safeMid(snap)
	if e.tracker.Position().IsFlat() {
		return e.hold(snap.Timestamp, mid, why, Flags{}), nil
	}
	return e.exit(mid, snap.Timestamp, why, Flags{})
}

// ResetDay starts a new trading day. With a position open it exits with
// DAY_RESET and defers the reset to the next tick that finds the engine
// flat. When flat it resets at once and holds with DAY_RESET_COMPLETE.
func (e *Engine) ResetDay(equity decimal.Decimal, snap market.BookSnapshot) (Decision, error) {
	mid := safeMid(snap)
	if !e.tracker.Position().IsFlat() {
		e.pendingReset = true
		e.pendingResetEquity = equity
		return e.exit(mid, snap.Timestamp, reason.DayReset, Flags{})
	}
	e.reset(equity, snap.Timestamp)
	return e.hold(snap.Timestamp, mid, reason.DayResetComplete, Flags{}), nil
}

// PendingReset reports whether a staged day reset is waiting.
func (e *Engine) PendingReset() bool { return e.pendingReset }

func (e *Engine) reset(equity decimal.Decimal, now time.Time) {
	e.risk.ResetDay(equity, now)
	e.tracker.Reset()
	e.journal.Clear()
	e.pendingReset = false
	e.log.Info().
		Str("event", "day_reset").
		Str("equity", equity.String()).
		Time("ts", now).
		Send()
}

func (e *Engine) Position() position.Position { return e.tracker.Position() }

// Unrealized marks the open position to price in dollars.
func (e *Engine) Unrealized(price decimal.Decimal) decimal.Decimal {
	_, usd := e.tracker.Unrealized(price)
	return usd
}

func (e *Engine) RiskState() risk.State { return e.risk.State() }

func (e *Engine) DailyStats() risk.DailyStats { return e.risk.DailyStats() }

func (e *Engine) DailyLossLimit() decimal.Decimal { return e.risk.DailyLossLimit() }

func (e *Engine) TodayTrades(now time.Time) []position.TradeRecord { return e.journal.Today(now) }

// safeMid is the mid price, or zero on a crossed book.
func safeMid(snap market.BookSnapshot) decimal.Decimal {
	if snap.Crossed() {
		return decimal.Zero
	}
	return snap.Mid()
}
