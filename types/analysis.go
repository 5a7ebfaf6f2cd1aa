package types

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the traces of a run
type Summary struct {
	Episodes     int
	MeanReturn   float64
	StdReturn    float64
	MinReturn    float64
	MaxReturn    float64
	MeanLength   float64
	Terminations int
	Truncations  int
}

// Summarize computes return and length statistics over the traces
func Summarize(traces []*Trace) Summary {
	s := Summary{Episodes: len(traces)}
	if len(traces) == 0 {
		return s
	}
	returns := make([]float64, len(traces))
	lengths := make([]float64, len(traces))
	for i, t := range traces {
		returns[i] = t.Return()
		lengths[i] = float64(t.Len() - 1)
		if t.Terminated() {
			s.Terminations++
		} else if t.Truncated() {
			s.Truncations++
		}
	}
	s.MeanReturn, s.StdReturn = stat.MeanStdDev(returns, nil)
	if len(returns) == 1 {
		s.StdReturn = 0
	}
	s.MeanLength = stat.Mean(lengths, nil)
	s.MinReturn = floats.Min(returns)
	s.MaxReturn = floats.Max(returns)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("Episodes: %d, Return: %.3f ± %.3f [%.3f, %.3f], Length: %.1f, Terminal: %d, Truncated: %d",
		s.Episodes, s.MeanReturn, s.StdReturn, s.MinReturn, s.MaxReturn, s.MeanLength, s.Terminations, s.Truncations)
}
