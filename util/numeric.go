package util

import (
	"errors"
	"math"
)

// AllFinite reports whether no component is NaN or infinite
func AllFinite(values []float32) bool {
	for _, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Prod returns the number of elements of a tensor with the given shape.
// The empty shape describes a scalar and has one element.
func Prod(shape []int) int {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return size
}

var ErrBroadcast = errors.New("bounds do not match shape")

// Broadcast expands a bound to one value per element of the shape.
// An empty bound stays empty, a single value is repeated.
func Broadcast(bound []float64, shape []int) ([]float64, error) {
	if len(bound) == 0 {
		return nil, nil
	}
	size := Prod(shape)
	if len(bound) == size {
		out := make([]float64, size)
		copy(out, bound)
		return out, nil
	}
	if len(bound) != 1 {
		return nil, ErrBroadcast
	}
	out := make([]float64, size)
	for i := range out {
		out[i] = bound[0]
	}
	return out, nil
}
