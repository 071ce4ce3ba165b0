package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrNoDailyLossLimit is returned when none of the daily loss limit
// candidates is configured.
var ErrNoDailyLossLimit = errors.New("no daily loss limit configured: set at least one of daily_loss_limit_pct, daily_max_loss_r, daily_loss_limit_dollars")

// ErrTickMismatch is returned when the signal and trade sections disagree
// on the instrument's tick size or tick value.
var ErrTickMismatch = errors.New("signal and trade tick_size/tick_value differ")

// Signal configures the structural-imbalance signal engine.
type Signal struct {
	WindowSize       int     `yaml:"window_size"`
	MinWarmupSamples int     `yaml:"min_warmup_samples"`
	ZThreshold       float64 `yaml:"z_threshold"`
	ZClip            float64 `yaml:"z_clip"`
	MadScale         float64 `yaml:"mad_scale"`
	Epsilon          float64 `yaml:"epsilon"`

	SignalCooldownMs int     `yaml:"signal_cooldown_ms"`
	HysteresisFactor float64 `yaml:"hysteresis_factor"`

	EnableQualityGates bool  `yaml:"enable_quality_gates"`
	MaxSpreadTicks     int   `yaml:"max_spread_ticks"`
	MinDepthL1         int64 `yaml:"min_depth_l1"`

	TickSize  decimal.Decimal `yaml:"tick_size"`
	TickValue decimal.Decimal `yaml:"tick_value"`
}

// Trade configures position management and account risk.
type Trade struct {
	EmergencyStopTicks int `yaml:"emergency_stop_ticks"`
	MaxPositionSeconds int `yaml:"max_position_seconds"`

	CooldownNormalMs    int `yaml:"cooldown_normal_ms"`
	CooldownEscalatedMs int `yaml:"cooldown_escalated_ms"`

	ContractSize int `yaml:"contract_size"`

	// Strictest-guard candidates. Nil disables a candidate.
	DailyLossLimitPct     *float64         `yaml:"daily_loss_limit_pct"`
	DailyMaxLossR         *int             `yaml:"daily_max_loss_r"`
	DailyLossLimitDollars *decimal.Decimal `yaml:"daily_loss_limit_dollars"` // negative

	MaxIntradayDrawdown  decimal.Decimal `yaml:"max_intraday_drawdown"`
	MaxConsecutiveLosses int             `yaml:"max_consecutive_losses"`
	SoftPauseMinutes     int             `yaml:"soft_pause_minutes"`
	MaxSpreadTicks       int             `yaml:"max_spread_ticks"`

	TradingWindowStart TimeOfDay `yaml:"trading_window_start"`
	TradingWindowEnd   TimeOfDay `yaml:"trading_window_end"`
	Timezone           string    `yaml:"timezone"`

	TickSize               decimal.Decimal `yaml:"tick_size"`
	TickValue              decimal.Decimal `yaml:"tick_value"`
	CommissionPerRoundTurn decimal.Decimal `yaml:"commission_per_round_turn"`
}

// Backtest configures the replay runner.
type Backtest struct {
	StartEquity    decimal.Decimal `yaml:"start_equity"`
	Speed          string          `yaml:"speed"` // max | fast | realtime
	FastRatePerSec int             `yaml:"fast_rate_per_sec"`
	JournalPath    string          `yaml:"journal_path"`
	MetricsAddr    string          `yaml:"metrics_addr"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Root struct {
	Signal   Signal   `yaml:"signal"`
	Trade    Trade    `yaml:"trade"`
	Backtest Backtest `yaml:"backtest"`
	Log      Log      `yaml:"log"`
}

// Default returns the reference configuration for ES futures.
func Default() Root {
	maxLossR := 3
	lossDollars := decimal.NewFromInt(-500)
	return Root{
		Signal: DefaultSignal(),
		Trade: Trade{
			EmergencyStopTicks:     10,
			MaxPositionSeconds:     300,
			CooldownNormalMs:       2000,
			CooldownEscalatedMs:    10000,
			ContractSize:           1,
			DailyMaxLossR:          &maxLossR,
			DailyLossLimitDollars:  &lossDollars,
			MaxIntradayDrawdown:    decimal.NewFromInt(750),
			MaxConsecutiveLosses:   5,
			SoftPauseMinutes:       10,
			MaxSpreadTicks:         2,
			TradingWindowStart:     NewTimeOfDay(14, 30),
			TradingWindowEnd:       NewTimeOfDay(21, 0),
			Timezone:               "UTC",
			TickSize:               decimal.RequireFromString("0.25"),
			TickValue:              decimal.RequireFromString("12.50"),
			CommissionPerRoundTurn: decimal.RequireFromString("4.50"),
		},
		Backtest: Backtest{
			StartEquity:    decimal.NewFromInt(50000),
			Speed:          "max",
			FastRatePerSec: 1000,
			JournalPath:    "data/trades.jsonl",
		},
		Log: Log{Level: "info"},
	}
}

// DefaultSignal returns the reference signal engine configuration.
func DefaultSignal() Signal {
	return Signal{
		WindowSize:         36000,
		MinWarmupSamples:   200,
		ZThreshold:         1.5,
		ZClip:              5.0,
		MadScale:           1.4826,
		Epsilon:            1e-10,
		SignalCooldownMs:   1000,
		HysteresisFactor:   0.5,
		EnableQualityGates: true,
		MaxSpreadTicks:     4,
		MinDepthL1:         1,
		TickSize:           decimal.RequireFromString("0.25"),
		TickValue:          decimal.RequireFromString("12.50"),
	}
}

// DefaultTrade returns the reference trade management configuration.
func DefaultTrade() Trade {
	return Default().Trade
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Root, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks every section.
func (c Root) Validate() error {
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := c.Trade.Validate(); err != nil {
		return fmt.Errorf("trade: %w", err)
	}
	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if !c.Signal.TickSize.Equal(c.Trade.TickSize) || !c.Signal.TickValue.Equal(c.Trade.TickValue) {
		return fmt.Errorf("%w: signal %s/%s, trade %s/%s", ErrTickMismatch,
			c.Signal.TickSize, c.Signal.TickValue, c.Trade.TickSize, c.Trade.TickValue)
	}
	return nil
}

// Hash returns a short content hash of the effective configuration.
func (c Root) Hash() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum[:8])
}

// Validate fails fast on the first invalid signal parameter.
func (s Signal) Validate() error {
	switch {
	case s.WindowSize <= 0:
		return fmt.Errorf("window_size must be > 0, got %d", s.WindowSize)
	case s.MinWarmupSamples <= 0:
		return fmt.Errorf("min_warmup_samples must be > 0, got %d", s.MinWarmupSamples)
	case s.MinWarmupSamples > s.WindowSize:
		return fmt.Errorf("min_warmup_samples (%d) exceeds window_size (%d)", s.MinWarmupSamples, s.WindowSize)
	case s.ZThreshold <= 0:
		return fmt.Errorf("z_threshold must be > 0, got %v", s.ZThreshold)
	case s.ZClip <= 0:
		return fmt.Errorf("z_clip must be > 0, got %v", s.ZClip)
	case s.MadScale <= 0:
		return fmt.Errorf("mad_scale must be > 0, got %v", s.MadScale)
	case s.Epsilon <= 0:
		return fmt.Errorf("epsilon must be > 0, got %v", s.Epsilon)
	case s.SignalCooldownMs < 0:
		return fmt.Errorf("signal_cooldown_ms must be >= 0, got %d", s.SignalCooldownMs)
	case s.HysteresisFactor <= 0 || s.HysteresisFactor >= 1:
		return fmt.Errorf("hysteresis_factor must be in (0,1), got %v", s.HysteresisFactor)
	case s.MaxSpreadTicks <= 0:
		return fmt.Errorf("max_spread_ticks must be > 0, got %d", s.MaxSpreadTicks)
	case s.MinDepthL1 < 0:
		return fmt.Errorf("min_depth_l1 must be >= 0, got %d", s.MinDepthL1)
	case !s.TickSize.IsPositive():
		return fmt.Errorf("tick_size must be > 0, got %s", s.TickSize)
	case !s.TickValue.IsPositive():
		return fmt.Errorf("tick_value must be > 0, got %s", s.TickValue)
	}
	return nil
}

// SignalCooldown returns the reversal/entry cooldown.
func (s Signal) SignalCooldown() time.Duration {
	return time.Duration(s.SignalCooldownMs) * time.Millisecond
}

// Validate fails fast on the first invalid trade parameter.
func (t Trade) Validate() error {
	if t.DailyLossLimitPct == nil && t.DailyMaxLossR == nil && t.DailyLossLimitDollars == nil {
		return ErrNoDailyLossLimit
	}
	switch {
	case t.DailyLossLimitPct != nil && *t.DailyLossLimitPct <= 0:
		return fmt.Errorf("daily_loss_limit_pct must be > 0, got %v", *t.DailyLossLimitPct)
	case t.DailyMaxLossR != nil && *t.DailyMaxLossR <= 0:
		return fmt.Errorf("daily_max_loss_r must be > 0, got %d", *t.DailyMaxLossR)
	case t.DailyLossLimitDollars != nil && !t.DailyLossLimitDollars.IsNegative():
		return fmt.Errorf("daily_loss_limit_dollars must be negative, got %s", *t.DailyLossLimitDollars)
	case t.EmergencyStopTicks <= 0:
		return fmt.Errorf("emergency_stop_ticks must be > 0, got %d", t.EmergencyStopTicks)
	case t.MaxPositionSeconds <= 0:
		return fmt.Errorf("max_position_seconds must be > 0, got %d", t.MaxPositionSeconds)
	case t.CooldownNormalMs < 0:
		return fmt.Errorf("cooldown_normal_ms must be >= 0, got %d", t.CooldownNormalMs)
	case t.CooldownEscalatedMs < 0:
		return fmt.Errorf("cooldown_escalated_ms must be >= 0, got %d", t.CooldownEscalatedMs)
	case t.ContractSize <= 0:
		return fmt.Errorf("contract_size must be > 0, got %d", t.ContractSize)
	case !t.MaxIntradayDrawdown.IsPositive():
		return fmt.Errorf("max_intraday_drawdown must be > 0, got %s", t.MaxIntradayDrawdown)
	case t.MaxConsecutiveLosses <= 0:
		return fmt.Errorf("max_consecutive_losses must be > 0, got %d", t.MaxConsecutiveLosses)
	case t.SoftPauseMinutes <= 0:
		return fmt.Errorf("soft_pause_minutes must be > 0, got %d", t.SoftPauseMinutes)
	case t.MaxSpreadTicks <= 0:
		return fmt.Errorf("max_spread_ticks must be > 0, got %d", t.MaxSpreadTicks)
	case !t.TickSize.IsPositive():
		return fmt.Errorf("tick_size must be > 0, got %s", t.TickSize)
	case !t.TickValue.IsPositive():
		return fmt.Errorf("tick_value must be > 0, got %s", t.TickValue)
	case t.CommissionPerRoundTurn.IsNegative():
		return fmt.Errorf("commission_per_round_turn must be >= 0, got %s", t.CommissionPerRoundTurn)
	case t.TradingWindowStart >= t.TradingWindowEnd:
		return fmt.Errorf("trading_window_start (%s) must be before trading_window_end (%s)", t.TradingWindowStart, t.TradingWindowEnd)
	}
	if _, err := t.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the exchange time zone, defaulting to UTC.
func (t Trade) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

func (t Trade) NormalCooldown() time.Duration {
	return time.Duration(t.CooldownNormalMs) * time.Millisecond
}

func (t Trade) EscalatedCooldown() time.Duration {
	return time.Duration(t.CooldownEscalatedMs) * time.Millisecond
}

func (t Trade) MaxHold() time.Duration {
	return time.Duration(t.MaxPositionSeconds) * time.Second
}

func (t Trade) SoftPause() time.Duration {
	return time.Duration(t.SoftPauseMinutes) * time.Minute
}

// Validate checks the replay settings.
func (b Backtest) Validate() error {
	switch b.Speed {
	case "", "max", "realtime":
	case "fast":
		if b.FastRatePerSec <= 0 {
			return fmt.Errorf("fast_rate_per_sec must be > 0 in fast mode, got %d", b.FastRatePerSec)
		}
	default:
		return fmt.Errorf("unknown speed %q (want max|fast|realtime)", b.Speed)
	}
	if !b.StartEquity.IsPositive() {
		return fmt.Errorf("start_equity must be > 0, got %s", b.StartEquity)
	}
	return nil
}
