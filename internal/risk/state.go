package risk

import (
	"time"

	"github.com/Rajchodisetti/structimb-edge/internal/observ"
)

type State string

const (
	StateNormal       State = "normal"
	StateSoftPaused   State = "soft_paused"
	StateHardDisabled State = "hard_disabled"
)

// Transition is one recorded state change.
type Transition struct {
	From  State     `json:"from"`
	To    State     `json:"to"`
	At    time.Time `json:"at"`
	Cause string    `json:"cause"`
}

func (m *Manager) State() State { return m.state }

// IsEntryAllowed is true only in Normal. A soft pause lifts only through
// CheckSoftPauseExpiry.
func (m *Manager) IsEntryAllowed() bool { return m.state == StateNormal }

// SoftPauseEnd returns when the current soft pause expires, zero if none.
func (m *Manager) SoftPauseEnd() time.Time { return m.softPauseEnd }

// CheckSoftPauseExpiry returns to Normal once now reaches the pause end.
// The consecutive-loss counter is kept.
func (m *Manager) CheckSoftPauseExpiry(now time.Time) {
	if m.state != StateSoftPaused || m.softPauseEnd.IsZero() || now.Before(m.softPauseEnd) {
		return
	}
	m.softPauseEnd = time.Time{}
	m.transition(StateNormal, now, "soft_pause_expired")
}

// Transitions returns the state changes recorded since construction.
func (m *Manager) Transitions() []Transition {
	out := make([]Transition, len(m.transitions))
	copy(out, m.transitions)
	return out
}

func (m *Manager) hardDisable(at time.Time, cause string) {
	if m.state == StateHardDisabled {
		return
	}
	m.softPauseEnd = time.Time{}
	m.transition(StateHardDisabled, at, cause)
}

func (m *Manager) transition(to State, at time.Time, cause string) {
	from := m.state
	m.state = to
	m.transitions = append(m.transitions, Transition{From: from, To: to, At: at, Cause: cause})

	observ.IncCounter("risk_state_transitions_total", map[string]string{"from": string(from), "to": string(to)})
	m.log.Warn().
		Str("event", "risk_state_changed").
		Str("from", string(from)).
		Str("to", string(to)).
		Str("cause", cause).
		Time("at", at).
		Send()
}
