package signal

import (
	"time"

	"github.com/Rajchodisetti/structimb-edge/internal/market"
)

// Generator turns z-scores into a direction with hysteresis and a cooldown
// between realised direction changes.
//
// Thresholds for T = threshold, h = hysteresis:
//
//	entry    |z| >= T
//	exit     back inside (-T, T*h) for LONG, (-T*h, T) for SHORT
//	reversal |z| >= T + T*h on the opposite side
//
// Entries and reversals wait for the cooldown; exits to FLAT never do.
// Not safe for concurrent use.
type Generator struct {
	entry    float64
	exit     float64
	reversal float64
	cooldown time.Duration

	dir        market.Direction
	lastChange time.Time
}

type transition func(g *Generator, z float64, now time.Time) market.Direction

var transitions = map[market.Direction]transition{
	market.Flat:  (*Generator).fromFlat,
	market.Long:  (*Generator).fromLong,
	market.Short: (*Generator).fromShort,
}

func NewGenerator(threshold, hysteresis float64, cooldown time.Duration) *Generator {
	exit := threshold * hysteresis
	return &Generator{
		entry:    threshold,
		exit:     exit,
		reversal: threshold + exit,
		cooldown: cooldown,
	}
}

// Next advances the state machine. When ready is false it returns Flat and
// leaves the state untouched.
func (g *Generator) Next(z float64, now time.Time, ready bool) (market.Direction, bool) {
	if !ready {
		return market.Flat, false
	}
	next := transitions[g.dir](g, z, now)
	if next == g.dir {
		return g.dir, false
	}
	g.dir = next
	g.lastChange = now
	return g.dir, true
}

// Direction returns the current state.
func (g *Generator) Direction() market.Direction { return g.dir }

// LastChange returns the time of the last realised change, zero if none.
func (g *Generator) LastChange() time.Time { return g.lastChange }

func (g *Generator) Reset() {
	g.dir = market.Flat
	g.lastChange = time.Time{}
}

func (g *Generator) cooldownElapsed(now time.Time) bool {
	return g.lastChange.IsZero() || now.Sub(g.lastChange) >= g.cooldown
}

func (g *Generator) fromFlat(z float64, now time.Time) market.Direction {
	if !g.cooldownElapsed(now) {
		return market.Flat
	}
	switch {
	case z >= g.entry:
		return market.Long
	case z <= -g.entry:
		return market.Short
	}
	return market.Flat
}

func (g *Generator) fromLong(z float64, now time.Time) market.Direction {
	switch {
	case z <= -g.reversal && g.cooldownElapsed(now):
		return market.Short
	case z < g.exit && z > -g.entry:
		return market.Flat
	}
	return market.Long
}

func (g *Generator) fromShort(z float64, now time.Time) market.Direction {
	switch {
	case z >= g.reversal && g.cooldownElapsed(now):
		return market.Long
	case z > -g.exit && z < g.entry:
		return market.Flat
	}
	return market.Short
}
