package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// R is the dollar risk of one emergency stop on a full position.
func (m *Manager) R() decimal.Decimal {
	return decimal.NewFromInt(int64(m.cfg.EmergencyStopTicks)).
		Mul(m.cfg.TickValue).
		Mul(decimal.NewFromInt(int64(m.cfg.ContractSize)))
}

// DailyLossLimit returns the strictest configured limit. All candidates are
// negative, so the strictest is the maximum (closest to zero).
func (m *Manager) DailyLossLimit() decimal.Decimal {
	var limits []decimal.Decimal
	if p := m.cfg.DailyLossLimitPct; p != nil {
		limits = append(limits, m.dayStartEquity.Mul(decimal.NewFromFloat(*p)).Div(hundred).Neg())
	}
	if r := m.cfg.DailyMaxLossR; r != nil {
		limits = append(limits, m.R().Mul(decimal.NewFromInt(int64(*r))).Neg())
	}
	if d := m.cfg.DailyLossLimitDollars; d != nil {
		limits = append(limits, *d)
	}
	// NewManager rejects configs without any candidate.
	return decimal.Max(limits[0], limits[1:]...)
}

// NetPnL is today's realised net result.
func (m *Manager) NetPnL() decimal.Decimal {
	total := decimal.Zero
	for _, t := range m.todayTrades {
		total = total.Add(t.NetPnL)
	}
	return total
}

// CheckDailyLossLimit hard-disables once today's net PnL reaches the limit.
// It reports whether the manager is hard-disabled.
func (m *Manager) CheckDailyLossLimit(at time.Time) bool {
	if m.state == StateHardDisabled {
		return true
	}
	if m.NetPnL().LessThanOrEqual(m.DailyLossLimit()) {
		m.hardDisable(at, "daily_loss_limit")
		return true
	}
	return false
}
