package types

import (
	"errors"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Policy picks the action vector for the next environment step.
// Learning is out of scope; policies here only drive episodes.
type Policy interface {
	NextAction(int, Observation) []float32
	Reset()
}

var ErrUnboundedAction = errors.New("action space has no bounds to sample from")

// RandomPolicy samples every action component uniformly within its bounds
type RandomPolicy struct {
	dists []distuv.Uniform
}

var _ Policy = &RandomPolicy{}

func NewRandomPolicy(actionSpace Spaces, seed uint64) (*RandomPolicy, error) {
	space, ok := actionSpace[KeyAction]
	if !ok || len(space.Low) == 0 || len(space.Low) != len(space.High) {
		return nil, ErrUnboundedAction
	}
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	dists := make([]distuv.Uniform, len(space.Low))
	for i := range space.Low {
		dists[i] = distuv.Uniform{Min: space.Low[i], Max: space.High[i], Src: src}
	}
	return &RandomPolicy{dists: dists}, nil
}

func (r *RandomPolicy) Reset() {}

func (r *RandomPolicy) NextAction(_ int, _ Observation) []float32 {
	out := make([]float32, len(r.dists))
	for i, d := range r.dists {
		out[i] = float32(d.Rand())
	}
	return out
}

// ZeroPolicy always returns the zero vector, useful to hold a robot still
type ZeroPolicy struct {
	size int
}

var _ Policy = &ZeroPolicy{}

func NewZeroPolicy(actionSpace Spaces) *ZeroPolicy {
	size := 0
	if space, ok := actionSpace[KeyAction]; ok && len(space.Shape) > 0 {
		size = space.Shape[0]
	}
	return &ZeroPolicy{size: size}
}

func (z *ZeroPolicy) Reset() {}

func (z *ZeroPolicy) NextAction(_ int, _ Observation) []float32 {
	return make([]float32, z.size)
}
