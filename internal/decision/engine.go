// Package decision turns signals and book prices into one trade action per
// tick. Rules are evaluated in a fixed order; the first match decides.
package decision

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/journal"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/observ"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
	"github.com/Rajchodisetti/structimb-edge/internal/risk"
)

type Action string

const (
	Hold       Action = "HOLD"
	EnterLong  Action = "ENTER_LONG"
	EnterShort Action = "ENTER_SHORT"
	Exit       Action = "EXIT"
)

// Flags carry secondary conditions for telemetry without overloading the
// primary reason.
type Flags struct {
	CooldownActive   bool `json:"cooldown_active"`
	SpreadGateActive bool `json:"spread_gate_active"`
	DataStale        bool `json:"data_stale"`
}

// Decision is the per-tick output.
type Decision struct {
	Action    Action            `json:"action"`
	Reason    reason.Code       `json:"reason"`
	Timestamp time.Time         `json:"ts"`
	MidPrice  decimal.Decimal   `json:"mid"`
	Direction *market.Direction `json:"direction,omitempty"`
	Quantity  int               `json:"quantity"`
	RiskState risk.State        `json:"risk_state"`
	Flags     Flags             `json:"flags"`

	// Trade is the closed round turn on Exit decisions.
	Trade *position.TradeRecord `json:"trade,omitempty"`
}

// Journal receives every closed trade.
type Journal interface {
	Record(rec position.TradeRecord)
	Today(now time.Time) []position.TradeRecord
	Clear()
}

// Engine is the trade decision state machine for one instrument. Not safe
// for concurrent use.
type Engine struct {
	cfg     config.Trade
	risk    *risk.Manager
	tracker *position.Tracker
	journal Journal
	log     zerolog.Logger

	pendingReset       bool
	pendingResetEquity decimal.Decimal
}

type Option func(*engineOptions)

type engineOptions struct {
	log   zerolog.Logger
	newID func() string
}

// WithLogger sets the logger for entries, exits and resets. Default is a
// no-op.
func WithLogger(l zerolog.Logger) Option {
	return func(o *engineOptions) { o.log = l }
}

// WithTradeIDs replaces the trade ID generator.
func WithTradeIDs(f func() string) Option {
	return func(o *engineOptions) { o.newID = f }
}

// NewEngine validates cfg and starts the day at startEquity. A nil journal
// gets an in-memory one.
func NewEngine(cfg config.Trade, startEquity decimal.Decimal, j Journal, opts ...Option) (*Engine, error) {
	o := engineOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	rm, err := risk.NewManager(cfg, startEquity, risk.WithLogger(o.log))
	if err != nil {
		return nil, fmt.Errorf("decision engine: %w", err)
	}
	tracker := position.NewTracker(cfg)
	if o.newID != nil {
		tracker.SetIDFunc(o.newID)
	}
	if j == nil {
		j = journal.NewMemory()
	}
	return &Engine{
		cfg:     cfg,
		risk:    rm,
		tracker: tracker,
		journal: j,
		log:     o.log,
	}, nil
}

// ProcessTick evaluates one tick. The snapshot timestamp is the clock.
func (e *Engine) ProcessTick(sig market.Signal, snap market.BookSnapshot, equity decimal.Decimal) (Decision, error) {
	d, err := e.processTick(sig, snap, equity)
	if err != nil {
		return d, err
	}
	observ.IncCounter("trade_decisions_total", map[string]string{"action": string(d.Action), "reason": string(d.Reason)})
	return d, nil
}

func (e *Engine) processTick(sig market.Signal, snap market.BookSnapshot, equity decimal.Decimal) (Decision, error) {
	now := snap.Timestamp
	var flags Flags

	if e.pendingReset && e.tracker.Position().IsFlat() {
		e.reset(e.pendingResetEquity, now)
	}
	e.risk.CheckSoftPauseExpiry(now)

	if snap.Crossed() {
		return e.hold(now, decimal.Zero, reason.FeedError, flags), nil
	}
	if sig.Stale {
		flags.DataStale = true
		return e.hold(now, decimal.Zero, reason.DataStale, flags), nil
	}

	mid := snap.Mid()
	e.risk.UpdateEquity(equity, now)
	inPosition := !e.tracker.Position().IsFlat()

	if e.risk.State() == risk.StateHardDisabled {
		if inPosition {
			return e.exit(mid, now, reason.RiskKillSwitch, flags)
		}
		return e.hold(now, mid, reason.TradingDisabled, flags), nil
	}

	if inPosition {
		if res := e.tracker.CheckExit(mid, now); res.ShouldExit {
			return e.exit(mid, now, res.Reason, flags)
		}
	}

	if !e.risk.IsWithinTradingWindow(now) {
		if inPosition {
			return e.exit(mid, now, reason.WindowClose, flags)
		}
		return e.hold(now, mid, reason.OutsideWindow, flags), nil
	}

	if inPosition {
		return e.hold(now, mid, reason.InPosition, flags), nil
	}

	if !e.risk.IsEntryAllowed() {
		return e.hold(now, mid, e.risk.BlockReason(), flags), nil
	}
	if !e.risk.CheckSpreadGate(snap) {
		flags.SpreadGateActive = true
		return e.hold(now, mid, reason.SpreadGate, flags), nil
	}
	if sig.Direction == market.Flat {
		flags.CooldownActive = e.tracker.InCooldown(now)
		return e.hold(now, mid, reason.NoSignal, flags), nil
	}
	if e.tracker.InCooldown(now) {
		flags.CooldownActive = true
		return e.hold(now, mid, reason.Cooldown, flags), nil
	}
	return e.enter(sig.Direction, mid, now, flags), nil
}

func (e *Engine) enter(dir market.Direction, mid decimal.Decimal, now time.Time, flags Flags) Decision {
	if !e.tracker.TryEntry(dir, mid, now, e.cfg.ContractSize) {
		return e.hold(now, mid, reason.NoSignal, flags)
	}
	action := EnterLong
	if dir == market.Short {
		action = EnterShort
	}
	e.log.Info().
		Str("event", "position_opened").
		Stringer("direction", dir).
		Str("price", mid.String()).
		Time("ts", now).
		Send()
	return Decision{
		Action:    action,
		Reason:    reason.Entry,
		Timestamp: now,
		MidPrice:  mid,
		Direction: &dir,
		Quantity:  e.cfg.ContractSize,
		RiskState: e.risk.State(),
		Flags:     flags,
	}
}

// exit closes the position and runs the post-trade bookkeeping: journal,
// risk tally, daily loss check and cooldown.
func (e *Engine) exit(mid decimal.Decimal, now time.Time, why reason.Code, flags Flags) (Decision, error) {
	rec, err := e.tracker.ExecuteExit(mid, now, why)
	if err != nil {
		return e.hold(now, mid, why, flags), fmt.Errorf("exit %s: %w", why, err)
	}
	e.journal.Record(rec)
	e.risk.RecordTrade(rec)
	e.risk.CheckDailyLossLimit(now)
	e.tracker.SetCooldown(now, why == reason.EmergencyStop)

	observ.IncCounter("trades_closed_total", map[string]string{"reason": string(why)})
	e.log.Info().
		Str("event", "position_closed").
		Str("trade_id", rec.ID).
		Str("reason", string(why)).
		Str("net_pnl", rec.NetPnL.String()).
		Time("ts", now).
		Send()

	return Decision{
		Action:    Exit,
		Reason:    why,
		Timestamp: now,
		MidPrice:  mid,
		Quantity:  rec.Quantity,
		RiskState: e.risk.State(),
		Flags:     flags,
		Trade:     &rec,
	}, nil
}

func (e *Engine) hold(now time.Time, mid decimal.Decimal, why reason.Code, flags Flags) Decision {
	return Decision{
		Action:    Hold,
		Reason:    why,
		Timestamp: now,
		MidPrice:  mid,
		RiskState: e.risk.State(),
		Flags:     flags,
	}
}
