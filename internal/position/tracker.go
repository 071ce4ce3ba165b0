// Package position tracks a single open position with its exit checks and
// the post-exit cooldown.
package position

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
)

// ErrNotInPosition is returned by ExecuteExit when the tracker is flat.
var ErrNotInPosition = errors.New("position: not in position")

var tradeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("structimb-edge/trade"))

type State string

const (
	StateFlat  State = "flat"
	StateLong  State = "long"
	StateShort State = "short"
)

// Position is a snapshot of the tracked position.
type Position struct {
	State      State            `json:"state"`
	Direction  market.Direction `json:"direction"`
	Quantity   int              `json:"quantity"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	EntryTime  time.Time        `json:"entry_time"`
}

func (p Position) IsFlat() bool { return p.State == StateFlat }

// TradeRecord is one completed round turn.
type TradeRecord struct {
	ID         string           `json:"id"`
	EntryTime  time.Time        `json:"entry_time"`
	ExitTime   time.Time        `json:"exit_time"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  decimal.Decimal  `json:"exit_price"`
	Direction  market.Direction `json:"direction"`
	Quantity   int              `json:"quantity"`
	PnLTicks   decimal.Decimal  `json:"pnl_ticks"`
	GrossPnL   decimal.Decimal  `json:"gross_pnl"`
	Fees       decimal.Decimal  `json:"fees"`
	NetPnL     decimal.Decimal  `json:"net_pnl"`
	ExitReason reason.Code      `json:"exit_reason"`
	Duration   time.Duration    `json:"duration_ns"`
}

// IsWin reports a strictly positive net result.
func (r TradeRecord) IsWin() bool { return r.NetPnL.IsPositive() }

// ExitResult is the outcome of CheckExit.
type ExitResult struct {
	ShouldExit bool
	Reason     reason.Code
}

// Tracker is the position state machine. Not safe for concurrent use.
type Tracker struct {
	stopTicks   decimal.Decimal
	maxHold     time.Duration
	normalCD    time.Duration
	escalatedCD time.Duration
	tickSize    decimal.Decimal
	tickValue   decimal.Decimal
	commission  decimal.Decimal
	newID       func() string
	seq         int

	pos         Position
	cooldownEnd time.Time
}

func NewTracker(cfg config.Trade) *Tracker {
	return &Tracker{
		stopTicks:   decimal.NewFromInt(int64(cfg.EmergencyStopTicks)),
		maxHold:     cfg.MaxHold(),
		normalCD:    cfg.NormalCooldown(),
		escalatedCD: cfg.EscalatedCooldown(),
		tickSize:    cfg.TickSize,
		tickValue:   cfg.TickValue,
		commission:  cfg.CommissionPerRoundTurn,
		pos:         Position{State: StateFlat},
	}
}

// SetIDFunc replaces the trade ID generator. By default IDs are name-based
// UUIDs of the entry time, exit time and trade sequence number, so equal
// inputs give equal IDs.
func (t *Tracker) SetIDFunc(f func() string) { t.newID = f }

// TryEntry opens a position at price. It fails unless flat and dir is Long
// or Short. A pending cooldown is left as is.
func (t *Tracker) TryEntry(dir market.Direction, price decimal.Decimal, at time.Time, qty int) bool {
	if !t.pos.IsFlat() {
		return false
	}
	state := StateLong
	switch dir {
	case market.Long:
	case market.Short:
		state = StateShort
	default:
		return false
	}
	t.pos = Position{
		State:      state,
		Direction:  dir,
		Quantity:   qty,
		EntryPrice: price,
		EntryTime:  at,
	}
	return true
}

// CheckExit evaluates the emergency stop, then the time exit.
func (t *Tracker) CheckExit(price decimal.Decimal, at time.Time) ExitResult {
	if t.pos.IsFlat() {
		return ExitResult{}
	}
	if t.pnlTicks(price).LessThanOrEqual(t.stopTicks.Neg()) {
		return ExitResult{ShouldExit: true, Reason: reason.EmergencyStop}
	}
	if at.Sub(t.pos.EntryTime) >= t.maxHold {
		return ExitResult{ShouldExit: true, Reason: reason.TimeExit}
	}
	return ExitResult{}
}

// ExecuteExit closes the position at price and returns the trade. The
// caller sets the cooldown afterwards.
func (t *Tracker) ExecuteExit(price decimal.Decimal, at time.Time, why reason.Code) (TradeRecord, error) {
	if t.pos.IsFlat() {
		return TradeRecord{}, ErrNotInPosition
	}
	qty := decimal.NewFromInt(int64(t.pos.Quantity))
	ticks := t.pnlTicks(price)
	gross := ticks.Mul(qty).Mul(t.tickValue)
	fees := qty.Mul(t.commission)
	t.seq++

	rec := TradeRecord{
		ID:         t.tradeID(at),
		EntryTime:  t.pos.EntryTime,
		ExitTime:   at,
		EntryPrice: t.pos.EntryPrice,
		ExitPrice:  price,
		Direction:  t.pos.Direction,
		Quantity:   t.pos.Quantity,
		PnLTicks:   ticks,
		GrossPnL:   gross,
		Fees:       fees,
		NetPnL:     gross.Sub(fees),
		ExitReason: why,
		Duration:   at.Sub(t.pos.EntryTime),
	}
	t.pos = Position{State: StateFlat}
	return rec, nil
}

// SetCooldown starts the post-exit cooldown at `at`.
func (t *Tracker) SetCooldown(at time.Time, emergency bool) {
	d := t.normalCD
	if emergency {
		d = t.escalatedCD
	}
	t.cooldownEnd = at.Add(d)
}

// InCooldown reports whether `at` is before the cooldown end.
func (t *Tracker) InCooldown(at time.Time) bool {
	return !t.cooldownEnd.IsZero() && at.Before(t.cooldownEnd)
}

// CooldownEnd returns the cooldown expiry, zero if none was set.
func (t *Tracker) CooldownEnd() time.Time { return t.cooldownEnd }

func (t *Tracker) Position() Position { return t.pos }

// Unrealized marks the open position to price. Flat positions mark to zero.
func (t *Tracker) Unrealized(price decimal.Decimal) (ticks, dollars decimal.Decimal) {
	if t.pos.IsFlat() {
		return decimal.Zero, decimal.Zero
	}
	ticks = t.pnlTicks(price)
	return ticks, ticks.Mul(decimal.NewFromInt(int64(t.pos.Quantity))).Mul(t.tickValue)
}

// Reset goes flat and clears the cooldown.
func (t *Tracker) Reset() {
	t.pos = Position{State: StateFlat}
	t.cooldownEnd = time.Time{}
}

func (t *Tracker) tradeID(exit time.Time) string {
	if t.newID != nil {
		return t.newID()
	}
	name := fmt.Sprintf("%d|%d|%d", t.pos.EntryTime.UnixNano(), exit.UnixNano(), t.seq)
	return uuid.NewSHA1(tradeNamespace, []byte(name)).String()
}

func (t *Tracker) pnlTicks(price decimal.Decimal) decimal.Decimal {
	return price.Sub(t.pos.EntryPrice).
		Mul(decimal.NewFromInt(int64(t.pos.Direction))).
		Div(t.tickSize)
}
