// Package journal keeps the record of completed trades, in memory for the
// decision engine and as JSON lines on disk for later analysis.
package journal

import (
	"time"

	"github.com/Rajchodisetti/structimb-edge/internal/position"
)

// Memory is an in-memory, append-only trade ledger. Not safe for
// concurrent use.
type Memory struct {
	trades []position.TradeRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(rec position.TradeRecord) {
	m.trades = append(m.trades, rec)
}

// All returns every trade in record order.
func (m *Memory) All() []position.TradeRecord {
	out := make([]position.TradeRecord, len(m.trades))
	copy(out, m.trades)
	return out
}

// Trades returns trades whose exit time lies in [from, to].
func (m *Memory) Trades(from, to time.Time) []position.TradeRecord {
	var out []position.TradeRecord
	for _, t := range m.trades {
		if !t.ExitTime.Before(from) && !t.ExitTime.After(to) {
			out = append(out, t)
		}
	}
	return out
}

// Today returns trades that exited on now's UTC calendar day.
func (m *Memory) Today(now time.Time) []position.TradeRecord {
	y, mo, d := now.UTC().Date()
	start := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return m.Trades(start, start.Add(24*time.Hour-time.Nanosecond))
}

func (m *Memory) Len() int { return len(m.trades) }

func (m *Memory) Clear() { m.trades = nil }
