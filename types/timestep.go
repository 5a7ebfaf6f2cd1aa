package types

import (
	"fmt"

	"github.com/zeu5/ur-rl-env/util"
	"golang.org/x/exp/slices"
)

// Array is a dense observation value with row-major data.
// A rank-0 array (empty shape) holds exactly one element.
type Array struct {
	DType DType     `json:"dtype"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Scalar builds a rank-0 array
func Scalar(dtype DType, value float64) Array {
	return Array{DType: dtype, Shape: []int{}, Data: []float64{value}}
}

// BoolScalar builds a rank-0 boolean array holding 0 or 1
func BoolScalar(value bool) Array {
	if value {
		return Scalar(Bool, 1)
	}
	return Scalar(Bool, 0)
}

// Zeros builds a zero-filled array of the given shape
func Zeros(dtype DType, shape ...int) Array {
	return Array{DType: dtype, Shape: slices.Clone(shape), Data: make([]float64, util.Prod(shape))}
}

func (a Array) Rank() int {
	return len(a.Shape)
}

func (a Array) Size() int {
	return len(a.Data)
}

func (a Array) Copy() Array {
	return Array{DType: a.DType, Shape: slices.Clone(a.Shape), Data: slices.Clone(a.Data)}
}

// Item returns the first element, used for scalar slots
func (a Array) Item() float64 {
	if len(a.Data) == 0 {
		return 0
	}
	return a.Data[0]
}

func (a Array) Equal(other Array) bool {
	return a.DType == other.DType && slices.Equal(a.Shape, other.Shape) && slices.Equal(a.Data, other.Data)
}

// StepType marks the position of a time-step within an episode
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "FIRST"
	case Mid:
		return "MID"
	case Last:
		return "LAST"
	default:
		return fmt.Sprintf("StepType(%d)", int(s))
	}
}

// TimeStep is one observation/reward/termination record produced by a session
type TimeStep struct {
	StepType StepType `json:"step_type"`
	// nil when the session did not report a reward for this step
	Reward      *float64         `json:"reward,omitempty"`
	Discount    float64          `json:"discount"`
	Observation map[string]Array `json:"observation"`
}

func (t TimeStep) First() bool {
	return t.StepType == First
}

func (t TimeStep) Mid() bool {
	return t.StepType == Mid
}

func (t TimeStep) Last() bool {
	return t.StepType == Last
}

// RewardOrZero coalesces an absent reward to zero
func (t TimeStep) RewardOrZero() float64 {
	if t.Reward == nil {
		return 0
	}
	return *t.Reward
}

// RewardOf returns a pointer to a reward value, for building time-steps
func RewardOf(r float64) *float64 {
	return &r
}

// NativeSpec is the declaration a remote session reports for one slot.
// Minimum and Maximum are either empty, a single broadcast value, or one
// value per element.
type NativeSpec struct {
	DType   DType     `json:"dtype"`
	Shape   []int     `json:"shape"`
	Minimum []float64 `json:"minimum,omitempty"`
	Maximum []float64 `json:"maximum,omitempty"`
}

func (n NativeSpec) Bounded() bool {
	return len(n.Minimum) > 0 || len(n.Maximum) > 0
}

// Empty reports whether the declared shape is exactly (0,), the marker for a
// channel the session declares but never populates
func (n NativeSpec) Empty() bool {
	return len(n.Shape) == 1 && n.Shape[0] == 0
}

func (s StepType) MarshalText() ([]byte, error) {
	switch s {
	case First, Mid, Last:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid step type %d", int(s))
}

func (s *StepType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "FIRST":
		*s = First
	case "MID":
		*s = Mid
	case "LAST":
		*s = Last
	default:
		return fmt.Errorf("invalid step type %q", string(text))
	}
	return nil
}
