package ur5e

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeu5/ur-rl-env/types"
)

func newTestEnv(t *testing.T, config Config, session *stubSession) *Env {
	t.Helper()
	env, err := New(context.Background(), config, WithSession(session))
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func dummyConfig(repeat int) Config {
	return Config{Task: TaskDummy, Repeat: repeat}
}

// panicErr runs f and returns the error it panicked with, if any
func panicErr(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	f()
	return nil
}

func step(t *testing.T, env *Env, vector []float32, reset bool) types.Observation {
	t.Helper()
	obs, err := env.Step(context.Background(), types.Action{Vector: vector, Reset: reset})
	require.NoError(t, err)
	return obs
}

var zeroAction = []float32{0, 0, 0, 0}

func TestDummySpacesWithoutSession(t *testing.T) {
	env, err := New(context.Background(), dummyConfig(1))
	require.NoError(t, err)
	defer env.Close()

	obsSpace := env.ObservationSpace()
	require.NotEmpty(t, obsSpace)
	assert.Equal(t, types.ScalarSpace(types.Float32), obsSpace[types.KeyReward])
	for _, key := range []string{types.KeyIsFirst, types.KeyIsLast, types.KeyIsTerminal} {
		assert.Equal(t, types.BoolSpace(), obsSpace[key], key)
	}
	assert.Equal(t, types.TensorSpace(types.Uint8, 64, 64, 3), obsSpace[KeyImage])
	assert.Len(t, obsSpace, 10)

	actSpace := env.ActionSpace()
	require.Len(t, actSpace, 2)
	assert.Equal(t, types.Float32, actSpace[types.KeyAction].DType)
	assert.Equal(t, []int{4}, actSpace[types.KeyAction].Shape)
	assert.Equal(t, []float64{-1, -1, -1, -1}, actSpace[types.KeyAction].Low)
	assert.Equal(t, []float64{1, 1, 1, 1}, actSpace[types.KeyAction].High)
	assert.Equal(t, types.BoolSpace(), actSpace[types.KeyReset])

	// the built-in dummy session produces observations matching the table
	obs := step(t, env, zeroAction, false)
	assert.True(t, obs.IsFirst())
	assert.Len(t, obs, len(obsSpace))
}

func TestSpacesAreStable(t *testing.T) {
	env := newTestEnv(t, dummyConfig(1), newStub())

	first := env.ObservationSpace()
	first[KeyImage].Shape[0] = 1
	delete(first, types.KeyReward)
	actions := env.ActionSpace()
	actions[types.KeyAction].Low[0] = -100

	assert.True(t, hardcodedObservationSpace().Equal(env.ObservationSpace()))
	assert.True(t, hardcodedActionSpace().Equal(env.ActionSpace()))

	step(t, env, zeroAction, true)
	step(t, env, zeroAction, false)
	assert.True(t, hardcodedObservationSpace().Equal(env.ObservationSpace()))
}

func TestResetStepDoesNotRepeat(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(4), stub)

	obs := step(t, env, zeroAction, false)
	assert.Equal(t, 1, stub.resets)
	assert.Equal(t, 0, stub.calls)

	obs = step(t, env, zeroAction, true)
	assert.Equal(t, 2, stub.resets)
	assert.Equal(t, 0, stub.calls)
	assert.Equal(t, float32(0), obs.Reward())
	assert.True(t, obs.IsFirst())
	assert.False(t, obs.IsLast())
	assert.False(t, obs.IsTerminal())
	assert.True(t, env.EpisodeOpen())
}

func TestFirstStepBehavesLikeReset(t *testing.T) {
	explicit := newStub()
	implicit := newStub()
	a := newTestEnv(t, dummyConfig(2), explicit)
	b := newTestEnv(t, dummyConfig(2), implicit)

	obsA := step(t, a, zeroAction, true)
	obsB := step(t, b, zeroAction, false)

	if diff := cmp.Diff(obsA, obsB); diff != "" {
		t.Errorf("first step differs from explicit reset (-reset +first):\n%s", diff)
	}
	assert.Equal(t, explicit.resets, implicit.resets)
	assert.Equal(t, 0, implicit.calls)
}

func TestRewardAccumulatesOverRepeats(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(3), stub)
	step(t, env, zeroAction, true)

	stub.script(stub.mid(types.RewardOf(1)), stub.mid(nil), stub.mid(types.RewardOf(2.5)))
	action := []float32{0.1, -0.2, 0.3, 0}
	obs := step(t, env, action, false)

	assert.Equal(t, 3, stub.calls)
	for _, a := range stub.actions {
		assert.Equal(t, action, a)
	}
	assert.Equal(t, float32(3.5), obs.Reward())
	assert.False(t, obs.IsFirst())
	assert.False(t, obs.IsLast())
	assert.True(t, env.EpisodeOpen())
}

func TestAbsentRewardsCountAsZero(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(2), stub)
	step(t, env, zeroAction, true)

	stub.script(stub.mid(nil), stub.mid(nil))
	obs := step(t, env, zeroAction, false)
	assert.Equal(t, float32(0), obs.Reward())
	assert.Equal(t, 2, stub.calls)
}

func TestTerminationStopsRepeats(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(5), stub)
	step(t, env, zeroAction, true)

	stub.script(stub.mid(types.RewardOf(1)), stub.last(types.RewardOf(2), 0), stub.mid(types.RewardOf(100)))
	obs := step(t, env, zeroAction, false)

	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, float32(3), obs.Reward())
	assert.True(t, obs.IsLast())
	assert.True(t, obs.IsTerminal())
	assert.False(t, env.EpisodeOpen())

	// the next step resets even without asking
	obs = step(t, env, zeroAction, false)
	assert.Equal(t, 2, stub.resets)
	assert.Equal(t, 2, stub.calls)
	assert.True(t, obs.IsFirst())
}

func TestTruncationIsNotTerminal(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(1), stub)
	step(t, env, zeroAction, true)

	stub.script(stub.last(types.RewardOf(0.5), 1))
	obs := step(t, env, zeroAction, false)
	assert.True(t, obs.IsLast())
	assert.False(t, obs.IsTerminal())
	assert.False(t, env.EpisodeOpen())
}

func TestNonFiniteActionPanicsWithoutStateChange(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(2), stub)
	step(t, env, zeroAction, true)
	require.True(t, env.EpisodeOpen())

	for _, bad := range [][]float32{
		{float32(math.NaN()), 0, 0, 0},
		{0, float32(math.Inf(1)), 0, 0},
		{0, 0, 0, float32(math.Inf(-1))},
	} {
		err := panicErr(func() {
			env.Step(context.Background(), types.Action{Vector: bad})
		})
		assert.ErrorIs(t, err, ErrNonFiniteAction)
		assert.True(t, env.EpisodeOpen())
		assert.Equal(t, 0, stub.calls)
		assert.Equal(t, 1, stub.resets)
	}
}

func TestNonFiniteActionIgnoredOnReset(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(1), stub)
	nan := []float32{float32(math.NaN()), 0, 0, 0}
	assert.Nil(t, panicErr(func() { step(t, env, nan, false) }))
	assert.Equal(t, 1, stub.resets)
}

func TestInvalidDiscountPanics(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(1), stub)
	step(t, env, zeroAction, true)

	bad := stub.mid(types.RewardOf(1))
	bad.Discount = 0.5
	stub.script(bad)
	err := panicErr(func() {
		env.Step(context.Background(), types.Action{Vector: zeroAction})
	})
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestDiscountCheckedOnLastRepeatOnly(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(2), stub)
	step(t, env, zeroAction, true)

	early := stub.mid(types.RewardOf(1))
	early.Discount = 0.9
	stub.script(early, stub.mid(types.RewardOf(1)))
	obs := step(t, env, zeroAction, false)
	assert.Equal(t, float32(2), obs.Reward())
}

func TestEmptyChannelsAreIgnored(t *testing.T) {
	for _, policy := range []SpacePolicy{SpacesHardcoded, SpacesDerived} {
		t.Run(string(policy), func(t *testing.T) {
			stub := newStub()
			stub.specs["kinect/pointcloud"] = types.NativeSpec{DType: types.Float32, Shape: []int{0}}
			stub.resetStep.Observation["kinect/pointcloud"] = types.Zeros(types.Float32, 0)

			env := newTestEnv(t, Config{Task: TaskReal, Repeat: 1, Spaces: policy}, stub)
			assert.NotContains(t, env.ObservationSpace(), "kinect/pointcloud")

			obs := step(t, env, zeroAction, true)
			assert.NotContains(t, obs, "kinect/pointcloud")

			next := stub.mid(types.RewardOf(1))
			next.Observation["kinect/pointcloud"] = types.Zeros(types.Float32, 0)
			stub.script(next)
			obs = step(t, env, zeroAction, false)
			assert.NotContains(t, obs, "kinect/pointcloud")
		})
	}
}

func TestEmptyHardcodedChannelIsDropped(t *testing.T) {
	for _, policy := range []SpacePolicy{SpacesHardcoded, SpacesDerived} {
		t.Run(string(policy), func(t *testing.T) {
			stub := newStub()
			// a disabled depth camera
			stub.specs[KeyDepth] = types.NativeSpec{DType: types.Uint8, Shape: []int{0}}
			stub.resetStep.Observation = observationFor(stub.specs)
			require.NotContains(t, stub.resetStep.Observation, KeyDepth)

			env := newTestEnv(t, Config{Task: TaskReal, Repeat: 1, Spaces: policy}, stub)
			space := env.ObservationSpace()
			assert.NotContains(t, space, KeyDepth)
			assert.Contains(t, space, KeyImage)

			var obs types.Observation
			require.Nil(t, panicErr(func() { obs = step(t, env, zeroAction, true) }))
			assert.ElementsMatch(t, space.Keys(), keysOf(obs))

			require.Nil(t, panicErr(func() { obs = step(t, env, zeroAction, false) }))
			assert.NotContains(t, obs, KeyDepth)
			assert.ElementsMatch(t, space.Keys(), keysOf(obs))
		})
	}
}

func TestScalarObservationsArePromoted(t *testing.T) {
	stub := newStub()
	stub.specs["arm/speed_scaling"] = types.NativeSpec{DType: types.Float32, Shape: []int{}}
	stub.resetStep.Observation["arm/speed_scaling"] = types.Scalar(types.Float32, 0.7)
	env := newTestEnv(t, Config{Task: TaskReal, Repeat: 1, Spaces: SpacesDerived}, stub)

	assert.Equal(t, []int{1}, env.ObservationSpace()["arm/speed_scaling"].Shape)
	obs := step(t, env, zeroAction, true)
	assert.Equal(t, []int{1}, obs["arm/speed_scaling"].Shape)
	assert.Equal(t, []float64{0.7}, obs["arm/speed_scaling"].Data)
	for key, value := range obs {
		if !types.IsBookkeepingKey(key) {
			assert.GreaterOrEqual(t, value.Rank(), 1, key)
		}
	}
}

func TestObservationKeysMatchSpace(t *testing.T) {
	stub := newStub()
	// undeclared in the hardcoded table
	stub.resetStep.Observation["debug/joint_temperature"] = types.Zeros(types.Float32, 6)
	// must not shadow the bookkeeping key
	stub.resetStep.Observation[types.KeyReward] = types.Scalar(types.Float32, 42)
	env := newTestEnv(t, dummyConfig(1), stub)

	obs := step(t, env, zeroAction, true)
	space := env.ObservationSpace()
	assert.ElementsMatch(t, space.Keys(), keysOf(obs))
	assert.Equal(t, float32(0), obs.Reward())
	assert.Equal(t, 0, obs[types.KeyReward].Rank())
}

func TestMissingDeclaredObservationPanics(t *testing.T) {
	stub := newStub()
	delete(stub.resetStep.Observation, KeyJoints)
	env := newTestEnv(t, dummyConfig(1), stub)

	err := panicErr(func() {
		env.Step(context.Background(), types.Action{Vector: zeroAction, Reset: true})
	})
	assert.ErrorIs(t, err, ErrMissingObservation)
}

func TestDerivedSpacesFollowSession(t *testing.T) {
	stub := newStub()
	stub.actionSpec = types.NativeSpec{
		DType:   types.Float64,
		Shape:   []int{7},
		Minimum: []float64{-0.5},
		Maximum: []float64{0.5},
	}
	env := newTestEnv(t, Config{Task: TaskReal, Repeat: 1, Spaces: SpacesDerived}, stub)

	want := types.Spaces{}
	for key, spec := range hardcodedSpecs() {
		want[key] = types.TensorSpace(spec.DType, spec.Shape...)
	}
	want[types.KeyReward] = types.ScalarSpace(types.Float32)
	want[types.KeyIsFirst] = types.BoolSpace()
	want[types.KeyIsLast] = types.BoolSpace()
	want[types.KeyIsTerminal] = types.BoolSpace()
	if diff := cmp.Diff(want, env.ObservationSpace()); diff != "" {
		t.Errorf("derived observation space mismatch (-want +got):\n%s", diff)
	}
	// the hardcoded table and the derived space agree on the robot channels
	assert.True(t, hardcodedObservationSpace().Equal(env.ObservationSpace()))

	action := env.ActionSpace()[types.KeyAction]
	assert.Equal(t, types.Float32, action.DType)
	assert.Equal(t, []int{7}, action.Shape)
	assert.Len(t, action.Low, 7)
	assert.Equal(t, 0.5, action.High[6])
	assert.Equal(t, types.BoolSpace(), env.ActionSpace()[types.KeyReset])
}

func TestConfigValidation(t *testing.T) {
	ctx := context.Background()
	cases := map[string]Config{
		"zero repeat":     {Task: TaskDummy, Repeat: 0},
		"unknown task":    {Task: "sim", Repeat: 1},
		"unknown spaces":  {Task: TaskDummy, Repeat: 1, Spaces: "learned"},
		"dummy derived":   {Task: TaskDummy, Repeat: 1, Spaces: SpacesDerived},
		"real no address": {Task: TaskReal, Repeat: 1},
	}
	for name, config := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(ctx, config)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	stub := newStub()
	env, err := New(context.Background(), dummyConfig(1), WithSession(stub))
	require.NoError(t, err)

	require.NoError(t, env.Close())
	require.NoError(t, env.Close())
	assert.Equal(t, 1, stub.closes)

	_, err = env.Step(context.Background(), types.Action{Vector: zeroAction, Reset: true})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 0, stub.resets)
}

func TestCloseDummyWithoutEpisode(t *testing.T) {
	env, err := New(context.Background(), dummyConfig(1))
	require.NoError(t, err)
	assert.NoError(t, env.Close())
	assert.NoError(t, env.Close())
}

func TestSessionErrorForcesReset(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(2), stub)
	step(t, env, zeroAction, true)

	stub.stepErr = errStub
	_, err := env.Step(context.Background(), types.Action{Vector: zeroAction})
	assert.ErrorIs(t, err, errStub)
	assert.False(t, env.EpisodeOpen())

	stub.stepErr = nil
	obs := step(t, env, zeroAction, false)
	assert.True(t, obs.IsFirst())
	assert.Equal(t, 2, stub.resets)
}

func TestEndToEndEpisode(t *testing.T) {
	stub := newStub()
	env := newTestEnv(t, dummyConfig(1), stub)

	obs := step(t, env, []float32{0, 0, 0, 0}, true)
	assert.True(t, obs.IsFirst())
	assert.Equal(t, float32(0), obs.Reward())
	assert.False(t, obs.IsTerminal())

	stub.script(stub.mid(types.RewardOf(1)))
	obs = step(t, env, []float32{0.1, -0.1, 0, 0}, false)
	assert.Equal(t, float32(1), obs.Reward())
	assert.False(t, obs.IsLast())

	stub.script(stub.last(types.RewardOf(0), 0))
	obs = step(t, env, []float32{0.1, -0.1, 0, 0}, false)
	assert.True(t, obs.IsLast())
	assert.True(t, obs.IsTerminal())
	assert.False(t, env.EpisodeOpen())

	obs = step(t, env, []float32{0.1, -0.1, 0, 0}, false)
	assert.True(t, obs.IsFirst())
	assert.Equal(t, float32(0), obs.Reward())
	assert.Equal(t, 2, stub.resets)
	assert.Equal(t, 2, stub.calls)
}

func keysOf(obs types.Observation) []string {
	keys := make([]string, 0, len(obs))
	for k := range obs {
		keys = append(keys, k)
	}
	return keys
}
