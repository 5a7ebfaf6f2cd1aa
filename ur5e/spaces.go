package ur5e

import (
	"fmt"

	"github.com/zeu5/ur-rl-env/types"
	"github.com/zeu5/ur-rl-env/util"
)

// Observation channels of the hardcoded table
const (
	KeyImage          = "kinect/image"
	KeyDepth          = "kinect/depth"
	KeyTCPPose        = "arm/ActualTCPPose"
	KeyJoints         = "arm/ActualQ"
	KeyGripperPos     = "gripper/pos"
	KeyObjectDetected = "gripper/object_detected"
)

// ActionSize is the length of the hardcoded action vector
const ActionSize = 4

// spaceFuncs produces the observation and action spaces of one policy
type spaceFuncs struct {
	observation func(session map[string]types.NativeSpec, ignore map[string]bool) (types.Spaces, error)
	action      func(session types.NativeSpec) (types.Spaces, error)
}

var spacePolicies = map[SpacePolicy]spaceFuncs{
	SpacesHardcoded: {
		observation: func(_ map[string]types.NativeSpec, ignore map[string]bool) (types.Spaces, error) {
			spaces := hardcodedObservationSpace()
			// a table channel the session declares empty is never observed
			for key := range ignore {
				if !types.IsBookkeepingKey(key) {
					delete(spaces, key)
				}
			}
			return spaces, nil
		},
		action: func(types.NativeSpec) (types.Spaces, error) {
			return hardcodedActionSpace(), nil
		},
	},
	SpacesDerived: {
		observation: derivedObservationSpace,
		action:      derivedActionSpace,
	},
}

// the learner side has no session to query, so the table is fixed
func hardcodedObservationSpace() types.Spaces {
	spaces := types.Spaces{
		KeyImage:          types.TensorSpace(types.Uint8, 64, 64, 3),
		KeyDepth:          types.TensorSpace(types.Uint8, 64, 64, 1),
		KeyTCPPose:        types.TensorSpace(types.Float32, 6),
		KeyJoints:         types.TensorSpace(types.Float32, 6),
		KeyGripperPos:     types.TensorSpace(types.Float32, 1),
		KeyObjectDetected: types.TensorSpace(types.Float32, 1),
	}
	addBookkeeping(spaces)
	return spaces
}

func hardcodedActionSpace() types.Spaces {
	low := make([]float64, ActionSize)
	high := make([]float64, ActionSize)
	for i := range low {
		low[i] = -1
		high[i] = 1
	}
	return types.Spaces{
		types.KeyAction: types.BoxSpace(types.Float32, low, high),
		types.KeyReset:  types.BoolSpace(),
	}
}

func derivedObservationSpace(specs map[string]types.NativeSpec, ignore map[string]bool) (types.Spaces, error) {
	spaces := make(types.Spaces, len(specs)+len(types.BookkeepingKeys))
	for key, spec := range specs {
		if ignore[key] {
			continue
		}
		space, err := convertSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("observation %q: %w", key, err)
		}
		// scalars are promoted when observed, so they are declared promoted
		if len(space.Shape) == 0 {
			space.Shape = []int{1}
		}
		spaces[key] = space
	}
	addBookkeeping(spaces)
	return spaces, nil
}

func derivedActionSpace(spec types.NativeSpec) (types.Spaces, error) {
	space, err := convertSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	space.DType = types.Float32
	return types.Spaces{
		types.KeyAction: space,
		types.KeyReset:  types.BoolSpace(),
	}, nil
}

// bookkeeping keys are written last so a session channel of the same name
// never shadows them
func addBookkeeping(spaces types.Spaces) {
	spaces[types.KeyReward] = types.ScalarSpace(types.Float32)
	spaces[types.KeyIsFirst] = types.BoolSpace()
	spaces[types.KeyIsLast] = types.BoolSpace()
	spaces[types.KeyIsTerminal] = types.BoolSpace()
}

// convertSpec turns a session declaration into a space, broadcasting scalar
// bounds to the full shape
func convertSpec(spec types.NativeSpec) (types.Space, error) {
	if !spec.DType.Valid() {
		return types.Space{}, fmt.Errorf("unknown dtype %q", spec.DType)
	}
	low, err := util.Broadcast(spec.Minimum, spec.Shape)
	if err != nil {
		return types.Space{}, fmt.Errorf("minimum: %w", err)
	}
	high, err := util.Broadcast(spec.Maximum, spec.Shape)
	if err != nil {
		return types.Space{}, fmt.Errorf("maximum: %w", err)
	}
	shape := make([]int, len(spec.Shape))
	copy(shape, spec.Shape)
	return types.Space{DType: spec.DType, Shape: shape, Low: low, High: high}, nil
}

// ignoredChannels collects the channels declared with shape (0,)
func ignoredChannels(specs map[string]types.NativeSpec) map[string]bool {
	ignore := make(map[string]bool)
	for key, spec := range specs {
		if spec.Empty() {
			ignore[key] = true
		}
	}
	return ignore
}
