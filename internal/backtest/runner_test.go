package backtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/feed"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
	"github.com/Rajchodisetti/structimb-edge/internal/position"
	"github.com/Rajchodisetti/structimb-edge/internal/reason"
)

var t0 = time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() config.Root {
	cfg := config.Default()
	cfg.Signal.WindowSize = 100
	cfg.Signal.MinWarmupSamples = 20
	cfg.Backtest.Speed = SpeedMax
	return cfg
}

func snapAt(at time.Time, bidSize, askSize int64) market.BookSnapshot {
	return market.BookSnapshot{
		Timestamp: at,
		BidPrice:  d("5000.00"),
		AskPrice:  d("5000.25"),
		BidSize:   bidSize,
		AskSize:   askSize,
	}
}

// entryScript warms the window with imbalances 0.1, 0, -0.1 and ends on a
// bid-heavy spike that opens a long position.
func entryScript(start time.Time) []market.BookSnapshot {
	var out []market.BookSnapshot
	for i := 0; i < 20; i++ {
		at := start.Add(time.Duration(i) * 100 * time.Millisecond)
		switch i % 3 {
		case 0:
			out = append(out, snapAt(at, 110, 90))
		case 1:
			out = append(out, snapAt(at, 100, 100))
		default:
			out = append(out, snapAt(at, 90, 110))
		}
	}
	return append(out, snapAt(start.Add(2*time.Second), 500, 10))
}

type memSink struct {
	recs []position.TradeRecord
	err  error
}

func (m *memSink) Append(rec position.TradeRecord) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}
}

func TestSummarize(t *testing.T) {
	trades := []position.TradeRecord{
		{GrossPnL: d("50"), Fees: d("4.5"), NetPnL: d("45.5")},
		{GrossPnL: d("-50"), Fees: d("4.5"), NetPnL: d("-54.5")},
		{GrossPnL: d("4.5"), Fees: d("4.5"), NetPnL: d("0")},
		{GrossPnL: d("24.5"), Fees: d("4.5"), NetPnL: d("20")},
	}
	s := Summarize(trades)
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.Equal(t, 0.5, s.WinRate)
	assert.True(t, s.GrossPnL.Equal(d("29")), s.GrossPnL.String())
	assert.True(t, s.Commission.Equal(d("18")))
	assert.True(t, s.NetPnL.Equal(d("11")))
	assert.True(t, s.AvgWin.Equal(d("32.75")))
	assert.True(t, s.AvgLoss.Equal(d("-54.5")))
	assert.InDelta(t, 65.5/54.5, s.ProfitFactor.InexactFloat64(), 1e-9)

	empty := Summarize(nil)
	assert.Zero(t, empty.TotalTrades)
	assert.Zero(t, empty.WinRate)
	assert.True(t, empty.ProfitFactor.IsZero())
}

func TestRun_EndOfFeedForcesExit(t *testing.T) {
	snaps := entryScript(t0)
	for i := 1; i <= 9; i++ {
		snaps = append(snaps, snapAt(t0.Add(2*time.Second+time.Duration(i)*100*time.Millisecond), 100, 100))
	}
	sink := &memSink{}
	r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps), WithSink(sink), WithRunID("run-1"), WithTradeIDs(sequentialIDs()))
	require.NoError(t, err)

	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.NotEmpty(t, res.ConfigHash)
	assert.Equal(t, 30, res.Snapshots)
	assert.Equal(t, 1, res.Days)
	assert.Equal(t, t0, res.Start)
	assert.Equal(t, 20, res.Decisions[string(reason.NoSignal)])
	assert.Equal(t, 1, res.Decisions[string(reason.Entry)])
	assert.Equal(t, 9, res.Decisions[string(reason.InPosition)])
	assert.Equal(t, 1, res.Decisions[string(reason.AdapterDisconnect)])

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, "t1", tr.ID)
	assert.Equal(t, reason.AdapterDisconnect, tr.ExitReason)
	assert.Equal(t, market.Long, tr.Direction)
	assert.True(t, tr.NetPnL.Equal(d("-4.5")))
	assert.Equal(t, 1, res.Losses)
	assert.True(t, res.FinalEquity.Equal(d("49995.5")), res.FinalEquity.String())
	assert.Equal(t, res.Trades, sink.recs)
}

func TestRun_DayRolloverExitsAndResets(t *testing.T) {
	snaps := entryScript(t0)
	snaps = append(snaps, snapAt(t0.Add(24*time.Hour), 100, 100))

	r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps), WithRunID("run-2"))
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Days)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, reason.DayReset, res.Trades[0].ExitReason)
	assert.Equal(t, 1, res.Decisions[string(reason.DayReset)])
	assert.Zero(t, res.Decisions[string(reason.AdapterDisconnect)], "flat at end of feed")
	assert.True(t, r.decider.Position().IsFlat())
	assert.False(t, r.decider.PendingReset())
}

func TestRun_BadFinalBookUsesLastTradablePrice(t *testing.T) {
	cases := []struct {
		name     string
		bid, ask string
	}{
		{"crossed", "5001.00", "5000.00"},
		{"zero_bid", "0", "5000.25"},
		{"negative_ask", "5000.00", "-1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			end := t0.Add(3 * time.Second)
			bad := snapAt(end, 100, 100)
			bad.BidPrice, bad.AskPrice = d(tc.bid), d(tc.ask)
			snaps := append(entryScript(t0), bad)

			r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps), WithTradeIDs(sequentialIDs()))
			require.NoError(t, err)
			res, err := r.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, res.Trades, 1)
			tr := res.Trades[0]
			assert.Equal(t, reason.AdapterDisconnect, tr.ExitReason)
			assert.True(t, tr.ExitPrice.Equal(d("5000.125")), tr.ExitPrice.String())
			assert.Equal(t, end, tr.ExitTime)
			assert.True(t, tr.NetPnL.Equal(d("-4.5")), tr.NetPnL.String())
			assert.True(t, res.FinalEquity.Equal(d("49995.5")), res.FinalEquity.String())
		})
	}
}

func TestRun_BadBookAtDayRolloverUsesLastTradablePrice(t *testing.T) {
	next := t0.Add(24 * time.Hour)
	bad := snapAt(next, 100, 100)
	bad.BidPrice, bad.AskPrice = d("5001.00"), d("5000.00")
	snaps := append(entryScript(t0), bad)

	r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps))
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Days)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, reason.DayReset, tr.ExitReason)
	assert.True(t, tr.ExitPrice.Equal(d("5000.125")), tr.ExitPrice.String())
	assert.Equal(t, next, tr.ExitTime)
	assert.True(t, res.FinalEquity.Equal(d("49995.5")), res.FinalEquity.String())
	assert.Equal(t, 1, res.Decisions[string(reason.FeedError)])
}

func TestRun_RealtimePacing(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.Speed = SpeedRealtime
	snaps := []market.BookSnapshot{
		snapAt(t0, 10, 10),
		snapAt(t0.Add(250*time.Millisecond), 10, 10),
		snapAt(t0.Add(100*time.Millisecond), 10, 10), // out of order: no wait
		snapAt(t0.Add(time.Second), 10, 10),
	}
	var slept []time.Duration
	r, err := NewRunner(cfg, feed.NewSliceSource(snaps), WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 900 * time.Millisecond}, slept)
}

func TestRun_FastMode(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.Speed = SpeedFast
	cfg.Backtest.FastRatePerSec = 1_000_000
	r, err := NewRunner(cfg, feed.NewSliceSource(entryScript(t0)))
	require.NoError(t, err)
	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21, res.Snapshots)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := NewRunner(testConfig(), feed.NewSliceSource(entryScript(t0)))
	require.NoError(t, err)
	res, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Snapshots)
}

func TestRun_SinkErrorStopsRun(t *testing.T) {
	snaps := entryScript(t0)
	sink := &memSink{err: errors.New("disk full")}
	r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps), WithSink(sink))
	require.NoError(t, err)
	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_Deterministic(t *testing.T) {
	run := func() Result {
		snaps := entryScript(t0)
		for i := 0; i < 50; i++ {
			at := t0.Add(3*time.Second + time.Duration(i)*700*time.Millisecond)
			snaps = append(snaps, snapAt(at, int64(50+i%7*20), int64(150-i%5*25)))
		}
		r, err := NewRunner(testConfig(), feed.NewSliceSource(snaps), WithRunID("fixed"), WithTradeIDs(sequentialIDs()))
		require.NoError(t, err)
		res, err := r.Run(context.Background())
		require.NoError(t, err)
		return res
	}
	assert.Equal(t, run(), run())
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backtest.Speed = "warp"
	_, err := NewRunner(cfg, feed.NewSliceSource(nil))
	require.Error(t, err)
}
