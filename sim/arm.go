package sim

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/zeu5/ur-rl-env/types"
	"golang.org/x/exp/rand"
)

const (
	// Declared by the arm but never populated
	KeyPointCloud = "kinect/pointcloud"
	// Rank-0 channel
	KeySpeedScaling = "arm/speed_scaling"
)

type ArmConfig struct {
	// Steps before the episode is cut with discount 1
	MaxSteps int `yaml:"max_steps"`
	// Metres moved per unit of action
	StepSize float64 `yaml:"step_size"`
	// Distance under which a closed gripper grasps the object
	GraspRadius float64 `yaml:"grasp_radius"`
	Seed        uint64  `yaml:"seed"`
}

func DefaultArmConfig() ArmConfig {
	return ArmConfig{
		MaxSteps:    100,
		StepSize:    0.05,
		GraspRadius: 0.05,
		Seed:        1,
	}
}

var ErrNotReset = errors.New("arm session has no open episode")

// Arm simulates a reaching and grasping task on a UR5e-like arm.
// The tool moves in the unit cube; the episode succeeds when the gripper is
// closed within GraspRadius of the object.
type Arm struct {
	config ArmConfig

	lock    *sync.Mutex
	rand    *rand.Rand
	tcp     [3]float64
	object  [3]float64
	gripper float64
	steps   int
	open    bool
}

var _ types.Session = &Arm{}

func NewArm(config ArmConfig) *Arm {
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultArmConfig().MaxSteps
	}
	if config.StepSize <= 0 {
		config.StepSize = DefaultArmConfig().StepSize
	}
	if config.GraspRadius <= 0 {
		config.GraspRadius = DefaultArmConfig().GraspRadius
	}
	return &Arm{
		config: config,
		lock:   new(sync.Mutex),
		rand:   rand.New(rand.NewSource(config.Seed)),
	}
}

func (a *Arm) ObservationSpec(context.Context) (map[string]types.NativeSpec, error) {
	specs := copySpecs(channels)
	specs[KeyPointCloud] = types.NativeSpec{DType: types.Float32, Shape: []int{0}}
	specs[KeySpeedScaling] = types.NativeSpec{DType: types.Float32, Shape: []int{}, Minimum: []float64{0}, Maximum: []float64{1}}
	return specs, nil
}

func (a *Arm) ActionSpec(context.Context) (types.NativeSpec, error) {
	return actionSpec, nil
}

func (a *Arm) Reset(context.Context) (types.TimeStep, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.tcp = [3]float64{0.5, 0.5, 0.5}
	for i := range a.object {
		a.object[i] = 0.1 + 0.8*a.rand.Float64()
	}
	a.gripper = 0
	a.steps = 0
	a.open = true
	return types.TimeStep{
		StepType:    types.First,
		Discount:    1,
		Observation: a.observe(false),
	}, nil
}

// Step moves the tool by the first three action components and drives the
// gripper with the fourth. No reward is reported on the first step of an
// episode.
func (a *Arm) Step(_ context.Context, action []float32) (types.TimeStep, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.open {
		return types.TimeStep{}, ErrNotReset
	}
	before := a.distance()
	for i := 0; i < 3 && i < len(action); i++ {
		a.tcp[i] = clip(a.tcp[i]+a.config.StepSize*clip(float64(action[i]), -1, 1), 0, 1)
	}
	if len(action) > 3 {
		a.gripper = clip((float64(action[3])+1)/2, 0, 1)
	}
	a.steps++

	grasped := a.gripper > 0.5 && a.distance() < a.config.GraspRadius
	t := types.TimeStep{
		StepType:    types.Mid,
		Discount:    1,
		Observation: a.observe(grasped),
	}
	if a.steps > 1 {
		t.Reward = types.RewardOf(before - a.distance())
	}
	switch {
	case grasped:
		t.StepType = types.Last
		t.Discount = 0
		t.Reward = types.RewardOf(t.RewardOrZero() + 1)
		a.open = false
	case a.steps >= a.config.MaxSteps:
		t.StepType = types.Last
		a.open = false
	}
	return t, nil
}

func (a *Arm) Close() error {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.open = false
	return nil
}

func (a *Arm) distance() float64 {
	sum := 0.0
	for i := range a.tcp {
		d := a.tcp[i] - a.object[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (a *Arm) observe(grasped bool) map[string]types.Array {
	obs := zeroObservation()

	pose := obs["arm/ActualTCPPose"]
	copy(pose.Data, a.tcp[:])

	// a crude inverse kinematics stand-in, enough to make the joints move
	joints := obs["arm/ActualQ"]
	joints.Data[0] = math.Atan2(a.tcp[1]-0.5, a.tcp[0]-0.5)
	joints.Data[1] = a.tcp[2] - 0.5
	joints.Data[2] = a.distance()

	obs["gripper/pos"].Data[0] = a.gripper
	if grasped {
		obs["gripper/object_detected"].Data[0] = 1
	}

	// mark the object in the image and its height in the depth map
	u := int(a.object[0] * 63)
	v := int(a.object[1] * 63)
	image := obs["kinect/image"]
	image.Data[(v*64+u)*3] = 255
	obs["kinect/depth"].Data[v*64+u] = math.Round(a.object[2] * 255)

	obs[KeySpeedScaling] = types.Scalar(types.Float32, 1)
	return obs
}

func clip(v, low, high float64) float64 {
	return math.Max(low, math.Min(high, v))
}
