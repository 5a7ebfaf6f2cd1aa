package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type AgentConfig struct {
	Episodes int
	// Maximum number of policy steps per episode, the reset step excluded
	Horizon     int
	Timeout     time.Duration
	Policy      Policy
	Environment Environment
	// Called after every finished episode
	OnEpisode func(int, *Trace, *EpisodeReport)
}

// Agent drives an environment with a policy for a number of episodes
type Agent struct {
	config *AgentConfig

	traces  []*Trace
	reports []*EpisodeReport
}

func NewAgent(config *AgentConfig) *Agent {
	return &Agent{
		config:  config,
		traces:  make([]*Trace, 0, config.Episodes),
		reports: make([]*EpisodeReport, 0, config.Episodes),
	}
}

// Run the agent for the configured number of episodes.
// Stops at the first environment error or when ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	if a.config.Episodes <= 0 || a.config.Horizon <= 0 {
		return errors.New("episodes and horizon must be positive")
	}
	for i := 0; i < a.config.Episodes; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		epCtx := NewEpisodeContext(ctx, i, a.config.Timeout)
		trace, err := a.runEpisode(epCtx)
		epCtx.Cancel()
		if err != nil {
			return fmt.Errorf("episode %d: %w", i, err)
		}
		a.traces = append(a.traces, trace)
		a.reports = append(a.reports, epCtx.Report)
		if a.config.OnEpisode != nil {
			a.config.OnEpisode(i, trace, epCtx.Report)
		}
	}
	return nil
}

// every episode opens with an explicit reset, so a horizon cut never leaks
// into the next episode
func (a *Agent) runEpisode(epCtx *EpisodeContext) (*Trace, error) {
	env := a.config.Environment
	policy := a.config.Policy
	policy.Reset()
	trace := NewTrace()

	start := time.Now()
	obs, err := env.Step(epCtx.Context, Action{Vector: policy.NextAction(0, nil), Reset: true})
	if err != nil {
		return nil, err
	}
	epCtx.Report.AddTimeEntry(time.Since(start), "env_reset", "Agent.runEpisode")
	trace.Append(nil, obs)

	for i := 0; i < a.config.Horizon; i++ {
		if obs.IsLast() {
			break
		}
		epCtx.Report.SetStep(i)
		action := policy.NextAction(i, obs)

		start = time.Now()
		obs, err = env.Step(epCtx.Context, Action{Vector: action})
		if err != nil {
			return nil, err
		}
		epCtx.Report.AddTimeEntry(time.Since(start), "env_step", "Agent.runEpisode")
		trace.Append(action, obs)
	}
	epCtx.Report.AddIntEntry(trace.Len()-1, "episode_length", "Agent.runEpisode")
	epCtx.Report.AddLog(outcome(trace), "outcome")
	return trace, nil
}

func outcome(trace *Trace) string {
	switch {
	case trace.Terminated():
		return "terminated"
	case trace.Truncated():
		return "truncated"
	default:
		return "horizon"
	}
}

func (a *Agent) Traces() []*Trace {
	return a.traces
}

func (a *Agent) Reports() []*EpisodeReport {
	return a.reports
}
