package ur5e

import (
	"context"
	"errors"

	"github.com/zeu5/ur-rl-env/types"
)

// stubSession replays scripted time-steps and records every call
type stubSession struct {
	specs      map[string]types.NativeSpec
	actionSpec types.NativeSpec

	resetStep types.TimeStep
	steps     []types.TimeStep
	stepErr   error

	resets  int
	calls   int
	actions [][]float32
	closes  int
}

var _ types.Session = &stubSession{}

var errStub = errors.New("stub failure")

func hardcodedSpecs() map[string]types.NativeSpec {
	return map[string]types.NativeSpec{
		KeyImage:          {DType: types.Uint8, Shape: []int{64, 64, 3}},
		KeyDepth:          {DType: types.Uint8, Shape: []int{64, 64, 1}},
		KeyTCPPose:        {DType: types.Float32, Shape: []int{6}},
		KeyJoints:         {DType: types.Float32, Shape: []int{6}},
		KeyGripperPos:     {DType: types.Float32, Shape: []int{1}},
		KeyObjectDetected: {DType: types.Float32, Shape: []int{1}},
	}
}

func observationFor(specs map[string]types.NativeSpec) map[string]types.Array {
	obs := make(map[string]types.Array, len(specs))
	for k, s := range specs {
		if s.Empty() {
			continue
		}
		obs[k] = types.Zeros(s.DType, s.Shape...)
	}
	return obs
}

func newStub() *stubSession {
	specs := hardcodedSpecs()
	return &stubSession{
		specs: specs,
		actionSpec: types.NativeSpec{
			DType:   types.Float32,
			Shape:   []int{4},
			Minimum: []float64{-1},
			Maximum: []float64{1},
		},
		resetStep: types.TimeStep{
			StepType:    types.First,
			Discount:    1,
			Observation: observationFor(specs),
		},
	}
}

// mid builds a continuing time-step; reward nil means absent
func (s *stubSession) mid(reward *float64) types.TimeStep {
	return types.TimeStep{StepType: types.Mid, Reward: reward, Discount: 1, Observation: observationFor(s.specs)}
}

func (s *stubSession) last(reward *float64, discount float64) types.TimeStep {
	return types.TimeStep{StepType: types.Last, Reward: reward, Discount: discount, Observation: observationFor(s.specs)}
}

func (s *stubSession) script(steps ...types.TimeStep) {
	s.steps = append(s.steps, steps...)
}

func (s *stubSession) Reset(context.Context) (types.TimeStep, error) {
	s.resets++
	return s.resetStep, nil
}

func (s *stubSession) Step(_ context.Context, action []float32) (types.TimeStep, error) {
	s.calls++
	s.actions = append(s.actions, action)
	if s.stepErr != nil {
		return types.TimeStep{}, s.stepErr
	}
	if len(s.steps) == 0 {
		return s.mid(types.RewardOf(0)), nil
	}
	next := s.steps[0]
	s.steps = s.steps[1:]
	return next, nil
}

func (s *stubSession) ObservationSpec(context.Context) (map[string]types.NativeSpec, error) {
	return s.specs, nil
}

func (s *stubSession) ActionSpec(context.Context) (types.NativeSpec, error) {
	return s.actionSpec, nil
}

func (s *stubSession) Close() error {
	s.closes++
	return nil
}
