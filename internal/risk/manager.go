// Package risk owns the account-level guards: the Normal/SoftPaused/
// HardDisabled state machine, intraday drawdown and the daily loss limit.
package risk

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
)

// Manager tracks one trading day of risk. Not safe for concurrent use.
type Manager struct {
	cfg config.Trade
	loc *time.Location
	log zerolog.Logger

	state        State
	softPauseEnd time.Time
	transitions  []Transition

	dayStartEquity decimal.Decimal
	peak           decimal.Decimal
	equity         decimal.Decimal

	consecutiveLosses int
	todayTrades       []position.TradeRecord
}

type Option func(*Manager)

// WithLogger sets the logger for state transitions. Default is a no-op.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager validates cfg and starts the day at dayStartEquity.
func NewManager(cfg config.Trade, dayStartEquity decimal.Decimal, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("risk manager: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("risk manager: %w", err)
	}
	m := &Manager{
		cfg:            cfg,
		loc:            loc,
		log:            zerolog.Nop(),
		state:          StateNormal,
		dayStartEquity: dayStartEquity,
		peak:           dayStartEquity,
		equity:         dayStartEquity,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// IsWithinTradingWindow reports start <= t < end in the exchange location.
func (m *Manager) IsWithinTradingWindow(t time.Time) bool {
	tod := config.Of(t.In(m.loc))
	return tod >= m.cfg.TradingWindowStart && tod < m.cfg.TradingWindowEnd
}

// CheckSpreadGate reports whether the spread is within the entry limit.
func (m *Manager) CheckSpreadGate(snap market.BookSnapshot) bool {
	return market.WithinSpread(snap.BidPrice, snap.AskPrice, m.cfg.TickSize, m.cfg.MaxSpreadTicks)
}

// BlockReason maps the current state to the hold reason for a refused entry.
func (m *Manager) BlockReason() reason.Code {
	switch m.state {
	case StateHardDisabled:
		return reason.TradingDisabled
	case StateSoftPaused:
		return reason.SoftPaused
	default:
		return reason.NoSignal
	}
}

// RecordTrade adds a closed trade to today's tally. Reaching the
// consecutive-loss limit from Normal starts a soft pause at the exit time.
func (m *Manager) RecordTrade(rec position.TradeRecord) {
	m.todayTrades = append(m.todayTrades, rec)
	if rec.IsWin() {
		m.consecutiveLosses = 0
		return
	}
	m.consecutiveLosses++
	if m.consecutiveLosses >= m.cfg.MaxConsecutiveLosses && m.state == StateNormal {
		m.softPauseEnd = rec.ExitTime.Add(m.cfg.SoftPause())
		m.transition(StateSoftPaused, rec.ExitTime, "consecutive_losses")
	}
}

// ResetDay starts a new day at equity: state back to Normal, counters and
// today's trades cleared.
func (m *Manager) ResetDay(equity decimal.Decimal, at time.Time) {
	m.dayStartEquity = equity
	m.peak = equity
	m.equity = equity
	if m.state != StateNormal {
		m.transition(StateNormal, at, "day_reset")
	}
	m.softPauseEnd = time.Time{}
	m.consecutiveLosses = 0
	m.todayTrades = nil
}
