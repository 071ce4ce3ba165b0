package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/structimb-edge/internal/config"
	"github.com/Rajchodisetti/structimb-edge/internal/market"
)

func testConfig() config.Signal {
	cfg := config.DefaultSignal()
	cfg.WindowSize = 1000
	cfg.MinWarmupSamples = 200
	return cfg
}

func book(i int, bidSize, askSize int64) market.BookSnapshot {
	return market.BookSnapshot{
		Timestamp: t0.Add(time.Duration(i) * 100 * time.Millisecond),
		BidPrice:  decimal.RequireFromString("5000.00"),
		AskPrice:  decimal.RequireFromString("5000.25"),
		BidSize:   bidSize,
		AskSize:   askSize,
	}
}

// warmupBook cycles imbalances 0.1, 0, -0.1 so the MAD settles at 0.1.
func warmupBook(i int) market.BookSnapshot {
	switch i % 3 {
	case 0:
		return book(i, 110, 90)
	case 1:
		return book(i, 100, 100)
	default:
		return book(i, 90, 110)
	}
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ZThreshold = 0
	_, err := NewEngine(cfg)
	require.Error(t, err)
}

// alternatingBook biases the book +-10 lots around 100, so the pre-spike
// window holds two values and its MAD is 0.
func alternatingBook(i int) market.BookSnapshot {
	if i%2 == 0 {
		return book(i, 110, 100)
	}
	return book(i, 100, 110)
}

func TestEngine_WarmupScenario(t *testing.T) {
	cases := []struct {
		name     string
		warm     func(int) market.BookSnapshot
		preMAD   float64
		spikeMAD float64
	}{
		{name: "three_cycle", warm: warmupBook, preMAD: 0.1, spikeMAD: 0.1},
		{name: "alternating_bias", warm: alternatingBook, preMAD: 0, spikeMAD: 20.0 / 210.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewEngine(testConfig())
			require.NoError(t, err)

			for i := 0; i < 199; i++ {
				sig := e.Process(tc.warm(i))
				require.False(t, sig.Warm, "sample %d", i)
				require.Equal(t, 0.0, sig.ZScore)
				require.Equal(t, market.Flat, sig.Direction)
			}
			sig := e.Process(tc.warm(199))
			require.True(t, sig.Warm)
			assert.Equal(t, 0.0, sig.ZScore)
			assert.Equal(t, market.Flat, sig.Direction)
			assert.InDelta(t, tc.preMAD, e.window.MAD(), 1e-12)

			spike := e.Process(book(200, 500, 10))
			assert.True(t, spike.Warm)
			assert.True(t, spike.QualityPassed)
			assert.InDelta(t, 490.0/510.0, spike.Imbalance, 1e-12)
			assert.InDelta(t, tc.spikeMAD, e.window.MAD(), 1e-12)
			assert.Equal(t, 5.0, spike.ZScore)
			assert.Equal(t, market.Long, spike.Direction)
			assert.Equal(t, 201, e.Samples())
		})
	}
}

func TestEngine_InvalidPriceTouchesNothing(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)
	e.Process(book(0, 10, 10))

	bad := book(1, 10, 10)
	bad.BidPrice = decimal.Zero
	sig := e.Process(bad)
	assert.True(t, sig.Stale)
	assert.False(t, sig.QualityPassed)
	assert.Equal(t, market.Flat, sig.Direction)
	assert.Equal(t, 0.0, sig.Imbalance)
	assert.Equal(t, 1, e.Samples())
}

func TestEngine_NoAddOnGatedOrStale(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)

	wide := book(0, 10, 10)
	wide.AskPrice = decimal.RequireFromString("5002.00")
	sig := e.Process(wide)
	assert.False(t, sig.QualityPassed)
	assert.Equal(t, 0, e.Samples())

	thin := book(1, 0, 10)
	sig = e.Process(thin)
	assert.False(t, sig.QualityPassed)
	assert.Equal(t, 0, e.Samples())

	stale := book(2, 10, 10)
	stale.Stale = true
	sig = e.Process(stale)
	assert.True(t, sig.Stale)
	assert.True(t, sig.QualityPassed)
	assert.Equal(t, 0.0, sig.Imbalance)
	assert.Equal(t, 0, e.Samples())

	e.Process(book(3, 10, 10))
	assert.Equal(t, 1, e.Samples())
}

func TestEngine_GatesDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.EnableQualityGates = false
	e, err := NewEngine(cfg)
	require.NoError(t, err)

	wide := book(0, 0, 10)
	wide.AskPrice = decimal.RequireFromString("5100")
	sig := e.Process(wide)
	assert.True(t, sig.QualityPassed)
	assert.Equal(t, -1.0, sig.Imbalance)
	assert.Equal(t, 1, e.Samples())
}

func TestEngine_Deterministic(t *testing.T) {
	run := func() []market.Signal {
		e, err := NewEngine(testConfig())
		require.NoError(t, err)
		var out []market.Signal
		for i := 0; i < 400; i++ {
			b := warmupBook(i)
			if i%50 == 49 {
				b = book(i, 400, 20)
			}
			if i%77 == 0 {
				b.Stale = true
			}
			out = append(out, e.Process(b))
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestEngine_Reset(t *testing.T) {
	e, err := NewEngine(testConfig())
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		e.Process(warmupBook(i))
	}
	e.Process(book(200, 500, 10))
	require.Equal(t, market.Long, e.Direction())

	e.Reset()
	assert.Equal(t, 0, e.Samples())
	assert.Equal(t, market.Flat, e.Direction())
	sig := e.Process(book(201, 500, 10))
	assert.False(t, sig.Warm)
}
