// Package sim provides robot sessions that run without hardware.
package sim

import (
	"context"

	"github.com/zeu5/ur-rl-env/types"
)

// Channel layout shared by the simulated sessions
var channels = map[string]types.NativeSpec{
	"kinect/image":            {DType: types.Uint8, Shape: []int{64, 64, 3}},
	"kinect/depth":            {DType: types.Uint8, Shape: []int{64, 64, 1}},
	"arm/ActualTCPPose":       {DType: types.Float32, Shape: []int{6}},
	"arm/ActualQ":             {DType: types.Float32, Shape: []int{6}},
	"gripper/pos":             {DType: types.Float32, Shape: []int{1}},
	"gripper/object_detected": {DType: types.Float32, Shape: []int{1}},
}

var actionSpec = types.NativeSpec{
	DType:   types.Float32,
	Shape:   []int{4},
	Minimum: []float64{-1},
	Maximum: []float64{1},
}

func copySpecs(specs map[string]types.NativeSpec) map[string]types.NativeSpec {
	out := make(map[string]types.NativeSpec, len(specs))
	for k, s := range specs {
		shape := make([]int, len(s.Shape))
		copy(shape, s.Shape)
		out[k] = types.NativeSpec{DType: s.DType, Shape: shape, Minimum: s.Minimum, Maximum: s.Maximum}
	}
	return out
}

func zeroObservation() map[string]types.Array {
	obs := make(map[string]types.Array, len(channels))
	for k, s := range channels {
		obs[k] = types.Zeros(s.DType, s.Shape...)
	}
	return obs
}

// DummySession returns zero observations and never ends an episode.
// It stands in for the robot on processes that only need the spaces.
type DummySession struct {
	steps int
}

var _ types.Session = &DummySession{}

func NewDummySession() *DummySession {
	return &DummySession{}
}

func (d *DummySession) Reset(context.Context) (types.TimeStep, error) {
	d.steps = 0
	return types.TimeStep{
		StepType:    types.First,
		Discount:    1,
		Observation: zeroObservation(),
	}, nil
}

func (d *DummySession) Step(context.Context, []float32) (types.TimeStep, error) {
	d.steps++
	return types.TimeStep{
		StepType:    types.Mid,
		Reward:      types.RewardOf(0),
		Discount:    1,
		Observation: zeroObservation(),
	}, nil
}

func (d *DummySession) ObservationSpec(context.Context) (map[string]types.NativeSpec, error) {
	return copySpecs(channels), nil
}

func (d *DummySession) ActionSpec(context.Context) (types.NativeSpec, error) {
	return actionSpec, nil
}

func (d *DummySession) Close() error {
	return nil
}

// Steps returns the number of steps since the last reset
func (d *DummySession) Steps() int {
	return d.steps
}
