package risk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/observ"
)

// DailyStats summarises today's trading.
type DailyStats struct {
	TradeCount        int             `json:"trade_count"`
	WinCount          int             `json:"win_count"`
	LossCount         int             `json:"loss_count"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	GrossPnL          decimal.Decimal `json:"gross_pnl"`
	Fees              decimal.Decimal `json:"fees"`
	NetPnL            decimal.Decimal `json:"net_pnl"`
	EquityPeak        decimal.Decimal `json:"equity_peak"`
	Drawdown          decimal.Decimal `json:"drawdown"`
}

// WinRate is wins over trades, 0 with no trades.
func (s DailyStats) WinRate() float64 {
	if s.TradeCount == 0 {
		return 0
	}
	return float64(s.WinCount) / float64(s.TradeCount)
}

// UpdateEquity marks equity, raises the peak and hard-disables when the
// drawdown from peak reaches the limit.
func (m *Manager) UpdateEquity(equity decimal.Decimal, at time.Time) {
	m.equity = equity
	if equity.GreaterThan(m.peak) {
		m.peak = equity
	}
	dd := m.CurrentDrawdown()

	observ.SetGauge("risk_equity", equity.InexactFloat64(), nil)
	observ.SetGauge("risk_drawdown", dd.InexactFloat64(), nil)

	if m.state != StateHardDisabled && dd.GreaterThanOrEqual(m.cfg.MaxIntradayDrawdown) {
		m.hardDisable(at, "max_drawdown")
	}
}

// CurrentDrawdown is peak minus current equity.
func (m *Manager) CurrentDrawdown() decimal.Decimal {
	return m.peak.Sub(m.equity)
}

func (m *Manager) Equity() decimal.Decimal         { return m.equity }
func (m *Manager) DayStartEquity() decimal.Decimal { return m.dayStartEquity }

func (m *Manager) DailyStats() DailyStats {
	s := DailyStats{
		TradeCount:        len(m.todayTrades),
		ConsecutiveLosses: m.consecutiveLosses,
		EquityPeak:        m.peak,
		Drawdown:          m.CurrentDrawdown(),
	}
	for _, t := range m.todayTrades {
		if t.IsWin() {
			s.WinCount++
		} else {
			s.LossCount++
		}
		s.GrossPnL = s.GrossPnL.Add(t.GrossPnL)
		s.Fees = s.Fees.Add(t.Fees)
		s.NetPnL = s.NetPnL.Add(t.NetPnL)
	}
	return s
}
