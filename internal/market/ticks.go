package market

import "github.com/shopspring/decimal"

// SpreadTicks returns (ask-bid)/tickSize in exact decimal arithmetic so that
// boundary spreads such as exactly 4 ticks compare exactly.
func SpreadTicks(bid, ask, tickSize decimal.Decimal) decimal.Decimal {
	return ask.Sub(bid).Div(tickSize)
}

// WithinSpread reports whether the spread is at most maxTicks.
func WithinSpread(bid, ask, tickSize decimal.Decimal, maxTicks int) bool {
	return SpreadTicks(bid, ask, tickSize).LessThanOrEqual(decimal.NewFromInt(int64(maxTicks)))
}
