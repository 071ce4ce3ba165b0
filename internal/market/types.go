package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the signed side of a signal or position.
type Direction int

const (
	Short Direction = -1
	Flat  Direction = 0
	Long  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// BookSnapshot is a top-of-book observation. Timestamps are UTC and are not
// guaranteed to be monotonic.
type BookSnapshot struct {
	Timestamp time.Time       `json:"ts"`
	BidPrice  decimal.Decimal `json:"bid"`
	BidSize   int64           `json:"bid_size"`
	AskPrice  decimal.Decimal `json:"ask"`
	AskSize   int64           `json:"ask_size"`
	Stale     bool            `json:"stale"`
}

// HasValidPrices reports whether both sides carry a positive price.
func (s BookSnapshot) HasValidPrices() bool {
	return s.BidPrice.IsPositive() && s.AskPrice.IsPositive()
}

// Crossed reports bid > ask.
func (s BookSnapshot) Crossed() bool {
	return s.BidPrice.GreaterThan(s.AskPrice)
}

// Mid returns (bid+ask)/2.
func (s BookSnapshot) Mid() decimal.Decimal {
	return s.BidPrice.Add(s.AskPrice).Div(decimal.NewFromInt(2))
}

// Signal is the per-snapshot output of the signal engine.
type Signal struct {
	Timestamp     time.Time `json:"ts"`
	Imbalance     float64   `json:"imbalance"`
	ZScore        float64   `json:"z"`
	Direction     Direction `json:"direction"`
	Warm          bool      `json:"warm"`
	Stale         bool      `json:"stale"`
	QualityPassed bool      `json:"quality_passed"`
}
