// Package signal computes the structural-imbalance signal from top-of-book
// snapshots: imbalance, robust z-score over a rolling window, quality gates
// and a hysteresis direction state machine.
package signal

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/observ"
	"github.com/Rajchodisetti/structimb-edge/internal/stats"
)

const (
	metricSnapshots        = "signal_snapshots_total"
	metricDirectionChanges = "signal_direction_changes_total"
)

// Engine processes snapshots into signals. One Engine per instrument; not
// safe for concurrent use.
type Engine struct {
	window    *stats.RollingWindow
	scorer    ZScorer
	gate      *CompositeGate
	generator *Generator
	log       zerolog.Logger
}

type Option func(*Engine)

// WithLogger sets the logger used for direction changes. Default is a no-op.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine validates cfg and wires the pipeline.
func NewEngine(cfg config.Signal, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("signal engine: %w", err)
	}

	gate := NewCompositeGate()
	if cfg.EnableQualityGates {
		gate = NewCompositeGate(
			SpreadGate{TickSize: cfg.TickSize, MaxTicks: cfg.MaxSpreadTicks},
			DepthGate{MinDepth: cfg.MinDepthL1},
		)
	}

	e := &Engine{
		window:    stats.NewRollingWindow(cfg.WindowSize, cfg.MinWarmupSamples),
		scorer:    ZScorer{MadScale: cfg.MadScale, Epsilon: cfg.Epsilon, Clip: cfg.ZClip},
		gate:      gate,
		generator: NewGenerator(cfg.ZThreshold, cfg.HysteresisFactor, cfg.SignalCooldown()),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Process evaluates one snapshot. Snapshots that fail validation, a quality
// gate, or are flagged stale yield a zero signal and leave the window
// untouched.
func (e *Engine) Process(snap market.BookSnapshot) market.Signal {
	sig := market.Signal{Timestamp: snap.Timestamp}

	if !snap.HasValidPrices() {
		sig.Warm = e.window.IsWarm()
		sig.Stale = true
		observ.IncCounter(metricSnapshots, map[string]string{"outcome": "invalid_price"})
		return sig
	}

	failed := e.gate.Failed(snap)
	sig.QualityPassed = failed == ""
	sig.Stale = snap.Stale
	if !sig.QualityPassed || snap.Stale {
		sig.Warm = e.window.IsWarm()
		outcome := "stale"
		if !sig.QualityPassed {
			outcome = "gate_" + failed
		}
		observ.IncCounter(metricSnapshots, map[string]string{"outcome": outcome})
		return sig
	}

	sig.Imbalance = Imbalance(snap.BidSize, snap.AskSize)
	e.window.Add(sig.Imbalance)
	sig.Warm = e.window.IsWarm()

	if sig.Warm {
		sig.ZScore = e.scorer.Score(sig.Imbalance, e.window.Median(), e.window.MAD())
		observ.IncCounter(metricSnapshots, map[string]string{"outcome": "scored"})
	} else {
		observ.IncCounter(metricSnapshots, map[string]string{"outcome": "warming"})
	}

	dir, changed := e.generator.Next(sig.ZScore, snap.Timestamp, sig.Warm)
	sig.Direction = dir
	if changed {
		observ.IncCounter(metricDirectionChanges, map[string]string{"to": dir.String()})
		e.log.Debug().
			Str("event", "signal_direction_changed").
			Stringer("to", dir).
			Float64("z", sig.ZScore).
			Time("ts", snap.Timestamp).
			Send()
	}
	return sig
}

// Reset clears the window and the generator, lifting any cooldown.
func (e *Engine) Reset() {
	e.window.Reset()
	e.generator.Reset()
}

// Samples returns the number of samples in the window.
func (e *Engine) Samples() int { return e.window.Count() }

// Direction returns the generator's current state.
func (e *Engine) Direction() market.Direction { return e.generator.Direction() }
