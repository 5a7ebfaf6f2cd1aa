package types

// Trace of an episode as (action, observation) pairs.
// The first observation is the one returned by the reset step.
type Trace struct {
	actions      [][]float32
	observations []Observation
}

func NewTrace() *Trace {
	return &Trace{
		actions:      make([][]float32, 0),
		observations: make([]Observation, 0),
	}
}

func (t *Trace) Append(action []float32, obs Observation) {
	t.actions = append(t.actions, action)
	t.observations = append(t.observations, obs)
}

func (t *Trace) Len() int {
	return len(t.observations)
}

func (t *Trace) Get(i int) ([]float32, Observation, bool) {
	if i < 0 || i >= len(t.observations) {
		return nil, nil, false
	}
	return t.actions[i], t.observations[i], true
}

func (t *Trace) Last() ([]float32, Observation, bool) {
	return t.Get(len(t.observations) - 1)
}

// Return sums the rewards of every step after the reset step
func (t *Trace) Return() float64 {
	total := 0.0
	for i := 1; i < len(t.observations); i++ {
		total += float64(t.observations[i].Reward())
	}
	return total
}

// Terminated reports whether the episode ended in a terminal state
func (t *Trace) Terminated() bool {
	_, obs, ok := t.Last()
	return ok && obs.IsTerminal()
}

// Truncated reports whether the episode ended without a terminal state
func (t *Trace) Truncated() bool {
	_, obs, ok := t.Last()
	return ok && obs.IsLast() && !obs.IsTerminal()
}
