package signal

import (
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/market"
)

// Gate is a per-snapshot data-quality check.
type Gate interface {
	Name() string
	Check(snap market.BookSnapshot) bool
}

// SpreadGate passes when the book is valid, not inverted and the spread is
// within MaxTicks.
type SpreadGate struct {
	TickSize decimal.Decimal
	MaxTicks int
}

func (g SpreadGate) Name() string { return "spread" }

func (g SpreadGate) Check(snap market.BookSnapshot) bool {
	if !snap.HasValidPrices() || snap.Crossed() {
		return false
	}
	return market.WithinSpread(snap.BidPrice, snap.AskPrice, g.TickSize, g.MaxTicks)
}

// DepthGate requires at least MinDepth contracts on both sides.
type DepthGate struct {
	MinDepth int64
}

func (g DepthGate) Name() string { return "depth" }

func (g DepthGate) Check(snap market.BookSnapshot) bool {
	return snap.BidSize >= g.MinDepth && snap.AskSize >= g.MinDepth
}

// CompositeGate passes when every sub-gate passes. An empty composite
// always passes.
type CompositeGate struct {
	gates []Gate
}

func NewCompositeGate(gates ...Gate) *CompositeGate {
	return &CompositeGate{gates: gates}
}

func (c *CompositeGate) Name() string { return "composite" }

func (c *CompositeGate) Check(snap market.BookSnapshot) bool {
	return c.Failed(snap) == ""
}

// Failed returns the name of the first failing gate, or "" when all pass.
func (c *CompositeGate) Failed(snap market.BookSnapshot) string {
	for _, g := range c.gates {
		if !g.Check(snap) {
			return g.Name()
		}
	}
	return ""
}

// Len returns the number of sub-gates.
func (c *CompositeGate) Len() int { return len(c.gates) }
