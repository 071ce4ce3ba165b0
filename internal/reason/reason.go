// Package reason holds the decision reason codes. The string values are a
// wire-level contract consumed by telemetry and must not be renamed.
package reason

type Code string

// Exit reasons
const (
	RiskKillSwitch    Code = "RISK_KILL_SWITCH"
	EmergencyStop     Code = "EMERGENCY_STOP"
	TimeExit          Code = "TIME_EXIT"
	WindowClose       Code = "WINDOW_CLOSE"
	DayReset          Code = "DAY_RESET"
	AdapterDisconnect Code = "ADAPTER_DISCONNECT"
)

// Hold reasons
const (
	TradingDisabled Code = "TRADING_DISABLED"
	OutsideWindow   Code = "OUTSIDE_WINDOW"
	InPosition      Code = "IN_POSITION"
	SoftPaused      Code = "SOFT_PAUSED"
	SpreadGate      Code = "SPREAD_GATE"
	NoSignal        Code = "NO_SIGNAL"
	DataStale       Code = "DATA_STALE"
	FeedError       Code = "FEED_ERROR"
	Cooldown        Code = "COOLDOWN"
)

const (
	DayResetComplete Code = "DAY_RESET_COMPLETE"
	Entry            Code = "ENTRY"
)

func (c Code) String() string { return string(c) }
