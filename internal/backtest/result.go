package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/structimb-edge/internal/decision"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
)

// Result summarises one replay.
type Result struct {
	RunID      string    `json:"run_id"`
	ConfigHash string    `json:"config_hash"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Snapshots  int       `json:"snapshots"`
	Days       int       `json:"days"`

	Summary
	FinalEquity decimal.Decimal `json:"final_equity"`

	// Decisions counts decisions by reason code.
	Decisions map[string]int         `json:"decisions"`
	Trades    []position.TradeRecord `json:"-"`
}

// Summary is the trade statistics block.
type Summary struct {
	TotalTrades  int             `json:"total_trades"`
	Wins         int             `json:"wins"`
	Losses       int             `json:"losses"`
	WinRate      float64         `json:"win_rate"`
	GrossPnL     decimal.Decimal `json:"gross_pnl"`
	Commission   decimal.Decimal `json:"commission"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
	AvgWin       decimal.Decimal `json:"avg_win"`
	AvgLoss      decimal.Decimal `json:"avg_loss"`
	ProfitFactor decimal.Decimal `json:"profit_factor"`
}

// Summarize computes trade statistics. Break-even trades count as neither
// win nor loss. ProfitFactor is gross wins over gross losses, zero without
// losses.
func Summarize(trades []position.TradeRecord) Summary {
	s := Summary{TotalTrades: len(trades)}
	winSum, lossSum := decimal.Zero, decimal.Zero
	for _, t := range trades {
		s.GrossPnL = s.GrossPnL.Add(t.GrossPnL)
		s.Commission = s.Commission.Add(t.Fees)
		s.NetPnL = s.NetPnL.Add(t.NetPnL)
		switch {
		case t.NetPnL.IsPositive():
			s.Wins++
			winSum = winSum.Add(t.NetPnL)
		case t.NetPnL.IsNegative():
			s.Losses++
			lossSum = lossSum.Add(t.NetPnL)
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.Wins > 0 {
		s.AvgWin = winSum.Div(decimal.NewFromInt(int64(s.Wins)))
	}
	if s.Losses > 0 {
		s.AvgLoss = lossSum.Div(decimal.NewFromInt(int64(s.Losses)))
		s.ProfitFactor = winSum.Div(lossSum).Abs()
	}
	return s
}

type accumulator struct {
	runID, hash string
	first, last time.Time
	snapshots   int
	days        int
	decisions   map[string]int
	trades      []position.TradeRecord
}

func newAccumulator(runID, hash string) *accumulator {
	return &accumulator{runID: runID, hash: hash, decisions: map[string]int{}}
}

func (a *accumulator) decision(d decision.Decision) {
	a.decisions[string(d.Reason)]++
}

func (a *accumulator) trade(rec position.TradeRecord) {
	a.trades = append(a.trades, rec)
}

func (a *accumulator) result(finalEquity decimal.Decimal) Result {
	return Result{
		RunID:       a.runID,
		ConfigHash:  a.hash,
		Start:       a.first,
		End:         a.last,
		Snapshots:   a.snapshots,
		Days:        a.days,
		Summary:     Summarize(a.trades),
		FinalEquity: finalEquity,
		Decisions:   a.decisions,
		Trades:      a.trades,
	}
}
