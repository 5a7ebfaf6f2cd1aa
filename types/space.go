package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DType names the element type of a tensor slot
type DType string

const (
	Uint8   DType = "uint8"
	Int32   DType = "int32"
	Int64   DType = "int64"
	Float32 DType = "float32"
	Float64 DType = "float64"
	Bool    DType = "bool"
)

func (d DType) Valid() bool {
	switch d {
	case Uint8, Int32, Int64, Float32, Float64, Bool:
		return true
	}
	return false
}

// Space declares the dtype, shape and optional bounds of a tensor slot.
// It never holds data and is compared structurally.
type Space struct {
	DType DType     `json:"dtype" yaml:"dtype"`
	Shape []int     `json:"shape" yaml:"shape"`
	Low   []float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High  []float64 `json:"high,omitempty" yaml:"high,omitempty"`
}

// ScalarSpace declares a rank-0 slot of the given dtype
func ScalarSpace(dtype DType) Space {
	return Space{DType: dtype, Shape: []int{}}
}

// BoolSpace declares a rank-0 boolean slot
func BoolSpace() Space {
	return ScalarSpace(Bool)
}

// TensorSpace declares an unbounded slot with the given shape
func TensorSpace(dtype DType, shape ...int) Space {
	return Space{DType: dtype, Shape: slices.Clone(shape)}
}

// BoxSpace declares a rank-1 slot whose shape is inferred from the bounds
func BoxSpace(dtype DType, low, high []float64) Space {
	return Space{
		DType: dtype,
		Shape: []int{len(low)},
		Low:   slices.Clone(low),
		High:  slices.Clone(high),
	}
}

func (s Space) Bounded() bool {
	return len(s.Low) > 0 || len(s.High) > 0
}

func (s Space) Copy() Space {
	return Space{
		DType: s.DType,
		Shape: slices.Clone(s.Shape),
		Low:   slices.Clone(s.Low),
		High:  slices.Clone(s.High),
	}
}

func (s Space) Equal(other Space) bool {
	return s.DType == other.DType &&
		slices.Equal(s.Shape, other.Shape) &&
		slices.Equal(s.Low, other.Low) &&
		slices.Equal(s.High, other.High)
}

func (s Space) String() string {
	if s.Bounded() {
		return fmt.Sprintf("Space(%s, %v, low=%v, high=%v)", s.DType, s.Shape, s.Low, s.High)
	}
	return fmt.Sprintf("Space(%s, %v)", s.DType, s.Shape)
}

// Spaces maps slot names to their declarations
type Spaces map[string]Space

// Clone returns a deep copy so callers cannot mutate a cached declaration
func (s Spaces) Clone() Spaces {
	out := make(Spaces, len(s))
	for k, space := range s {
		out[k] = space.Copy()
	}
	return out
}

func (s Spaces) Equal(other Spaces) bool {
	if len(s) != len(other) {
		return false
	}
	for k, space := range s {
		o, ok := other[k]
		if !ok || !space.Equal(o) {
			return false
		}
	}
	return true
}

// Keys returns the slot names in sorted order
func (s Spaces) Keys() []string {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}

func (s Spaces) String() string {
	lines := make([]string, 0, len(s))
	for _, k := range s.Keys() {
		lines = append(lines, fmt.Sprintf("%s: %s", k, s[k]))
	}
	return strings.Join(lines, "\n")
}
