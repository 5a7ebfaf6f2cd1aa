package types

import "context"

// Keys every observation carries alongside the session's own channels
const (
	KeyReward     = "reward"
	KeyIsFirst    = "is_first"
	KeyIsLast     = "is_last"
	KeyIsTerminal = "is_terminal"

	KeyAction = "action"
	KeyReset  = "reset"
)

// BookkeepingKeys lists the observation keys written by the environment
// rather than by the session
var BookkeepingKeys = []string{KeyReward, KeyIsFirst, KeyIsLast, KeyIsTerminal}

func IsBookkeepingKey(key string) bool {
	switch key {
	case KeyReward, KeyIsFirst, KeyIsLast, KeyIsTerminal:
		return true
	}
	return false
}

// Session is the remote robot session an environment drives.
// Calls block until the physical or simulated action completes.
type Session interface {
	// Reset starts a new episode and returns its first time-step
	Reset(context.Context) (TimeStep, error)
	// Step applies the action vector once
	Step(context.Context, []float32) (TimeStep, error)
	// ObservationSpec returns the declared observation channels
	ObservationSpec(context.Context) (map[string]NativeSpec, error)
	// ActionSpec returns the declared action vector bounds
	ActionSpec(context.Context) (NativeSpec, error)
	// Close releases the session
	Close() error
}

// Action is the training loop's input to an environment step
type Action struct {
	Vector []float32 `json:"action"`
	Reset  bool      `json:"reset"`
}

// Observation is the flat per-step mapping returned to the training loop
type Observation map[string]Array

func (o Observation) Reward() float32 {
	return float32(o[KeyReward].Item())
}

func (o Observation) IsFirst() bool {
	return o[KeyIsFirst].Item() != 0
}

func (o Observation) IsLast() bool {
	return o[KeyIsLast].Item() != 0
}

func (o Observation) IsTerminal() bool {
	return o[KeyIsTerminal].Item() != 0
}

// Environment is the contract consumed by the training loop.
// Not safe for concurrent use; a single caller drives it sequentially.
type Environment interface {
	// ObservationSpace is computed once and never changes
	ObservationSpace() Spaces
	// ActionSpace is computed once and never changes
	ActionSpace() Spaces
	// Step advances (or resets) the episode
	Step(context.Context, Action) (Observation, error)
	// Close releases the underlying session
	Close() error
}
