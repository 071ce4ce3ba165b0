// Package backtest replays recorded snapshots through the signal and
// decision engines and summarises the resulting trades.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/decision"
	"github.com/Rajchodisetti/structimb-edge/internal/feed"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/observ"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
	"github.com/Rajchodisetti/structimb-edge/internal/signal"
)

const (
	SpeedMax      = "max"
	SpeedFast     = "fast"
	SpeedRealtime = "realtime"
)

// TradeSink receives every closed trade as it happens.
type TradeSink interface {
	Append(rec position.TradeRecord) error
}

// Runner drives one replay. A Runner is single use.
type Runner struct {
	cfg     config.Root
	src     feed.Source
	signal  *signal.Engine
	decider *decision.Engine
	loc     *time.Location

	sink    TradeSink
	log     zerolog.Logger
	runID   string
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error

	startEquity decimal.Decimal
	realised    decimal.Decimal

	lastGood market.BookSnapshot
	haveGood bool
}

type Option func(*runnerOptions)

type runnerOptions struct {
	sink     TradeSink
	log      zerolog.Logger
	runID    string
	tradeIDs func() string
	sleep    func(ctx context.Context, d time.Duration) error
}

func WithSink(s TradeSink) Option { return func(o *runnerOptions) { o.sink = s } }

// WithLogger is passed down to both engines.
func WithLogger(l zerolog.Logger) Option { return func(o *runnerOptions) { o.log = l } }

// WithRunID fixes the run ID instead of a random UUID.
func WithRunID(id string) Option { return func(o *runnerOptions) { o.runID = id } }

func WithTradeIDs(f func() string) Option { return func(o *runnerOptions) { o.tradeIDs = f } }

// WithSleep replaces the realtime pacing sleep.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(o *runnerOptions) { o.sleep = f }
}

// NewRunner wires both engines from cfg. cfg is validated.
func NewRunner(cfg config.Root, src feed.Source, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := runnerOptions{log: zerolog.Nop(), sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	sig, err := signal.NewEngine(cfg.Signal, signal.WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	decOpts := []decision.Option{decision.WithLogger(o.log)}
	if o.tradeIDs != nil {
		decOpts = append(decOpts, decision.WithTradeIDs(o.tradeIDs))
	}
	dec, err := decision.NewEngine(cfg.Trade, cfg.Backtest.StartEquity, nil, decOpts...)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Trade.Location()
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:         cfg,
		src:         src,
		signal:      sig,
		decider:     dec,
		loc:         loc,
		sink:        o.sink,
		log:         o.log.With().Str("run_id", o.runID).Logger(),
		runID:       o.runID,
		sleep:       o.sleep,
		startEquity: cfg.Backtest.StartEquity,
	}
	if cfg.Backtest.Speed == SpeedFast {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Backtest.FastRatePerSec), 1)
	}
	return r, nil
}

func (r *Runner) RunID() string { return r.runID }

// Run replays the source until EOF or ctx is done. A position still open at
// the end of the feed is closed with ADAPTER_DISCONNECT. On error the
// partial result is returned alongside it.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	began := time.Now()
	acc := newAccumulator(r.runID, r.cfg.Hash())

	var (
		last    market.BookSnapshot
		lastDay string
		seen    bool
		runErr  error
	)
	for {
		snap, err := r.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}
		if err := r.pace(ctx, last, snap, seen); err != nil {
			runErr = err
			break
		}

		day := snap.Timestamp.In(r.loc).Format(time.DateOnly)
		if seen && day != lastDay {
			priced := r.priced(snap)
			d, err := r.decider.ResetDay(r.equity(priced), priced)
			if err != nil {
				runErr = err
				break
			}
			if err := r.handle(d, acc); err != nil {
				runErr = err
				break
			}
			acc.days++
			r.log.Info().Str("event", "session_rollover").Str("day", day).Send()
		}
		if !seen {
			acc.days = 1
			acc.first = snap.Timestamp
		}
		lastDay, last, seen = day, snap, true
		if tradable(snap) {
			r.lastGood, r.haveGood = snap, true
		}
		acc.snapshots++

		sig := r.signal.Process(snap)
		d, err := r.decider.ProcessTick(sig, snap, r.equity(snap))
		if err != nil {
			runErr = err
			break
		}
		if err := r.handle(d, acc); err != nil {
			runErr = err
			break
		}
	}

	if seen && !r.decider.Position().IsFlat() && runErr == nil {
		d, err := r.decider.ForceExit(r.priced(last), reason.AdapterDisconnect)
		if err != nil {
			runErr = err
		} else if err := r.handle(d, acc); err != nil {
			runErr = err
		}
	}

	acc.last = last.Timestamp
	res := acc.result(r.startEquity.Add(r.realised))
	observ.RecordDuration("backtest_run", time.Since(began), nil)
	r.log.Info().
		Str("event", "backtest_finished").
		Int("snapshots", res.Snapshots).
		Int("trades", res.TotalTrades).
		Str("net_pnl", res.NetPnL.String()).
		Send()
	if runErr != nil {
		return res, fmt.Errorf("backtest %s: %w", r.runID, runErr)
	}
	return res, nil
}

// priced returns snap when its book is tradable, otherwise the last
// tradable book stamped with snap's time. Forced exits and day resets are
// priced from it so a bad final tick cannot set the exit price.
func (r *Runner) priced(snap market.BookSnapshot) market.BookSnapshot {
	if tradable(snap) || !r.haveGood {
		return snap
	}
	out := r.lastGood
	out.Timestamp = snap.Timestamp
	return out
}

func tradable(snap market.BookSnapshot) bool {
	return snap.HasValidPrices() && !snap.Crossed()
}

// equity marks the account: start + realised + open position at mid. A
// crossed or invalid book marks the position at zero.
func (r *Runner) equity(snap market.BookSnapshot) decimal.Decimal {
	eq := r.startEquity.Add(r.realised)
	if tradable(snap) {
		eq = eq.Add(r.decider.Unrealized(snap.Mid()))
	}
	return eq
}

func (r *Runner) handle(d decision.Decision, acc *accumulator) error {
	acc.decision(d)
	if d.Trade == nil {
		return nil
	}
	r.realised = r.realised.Add(d.Trade.NetPnL)
	acc.trade(*d.Trade)
	if r.sink != nil {
		if err := r.sink.Append(*d.Trade); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}

func (r *Runner) pace(ctx context.Context, prev, next market.BookSnapshot, seen bool) error {
	switch r.cfg.Backtest.Speed {
	case SpeedFast:
		return r.limiter.Wait(ctx)
	case SpeedRealtime:
		if !seen {
			return nil
		}
		if gap := next.Timestamp.Sub(prev.Timestamp); gap > 0 {
			return r.sleep(ctx, gap)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
