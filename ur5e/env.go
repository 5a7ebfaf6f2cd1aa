// Package ur5e adapts a remote UR5e robot session to the fixed environment
// contract of the training loop.
package ur5e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zeu5/ur-rl-env/remote"
	"github.com/zeu5/ur-rl-env/sim"
	"github.com/zeu5/ur-rl-env/types"
	"github.com/zeu5/ur-rl-env/util"
)

var (
	ErrClosed = errors.New("environment is closed")

	// Contract violations, raised as panics
	ErrNonFiniteAction    = errors.New("action vector has non-finite components")
	ErrInvalidDiscount    = errors.New("discount must be exactly 0 or 1")
	ErrMissingObservation = errors.New("session omitted a declared observation")
)

type options struct {
	session types.Session
	logger  *slog.Logger
}

type Option func(*options)

// WithSession hands an already open session to the environment, which takes
// ownership of it and closes it on Close
func WithSession(s types.Session) Option {
	return func(o *options) {
		o.session = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Env is the episode adapter. It owns exactly one session and is driven by a
// single caller; it is not safe for concurrent use.
type Env struct {
	config  Config
	session types.Session
	logger  *slog.Logger

	// computed once at construction
	observationSpace types.Spaces
	actionSpace      types.Spaces
	ignore           map[string]bool

	state  episodeState
	closed bool
}

var _ types.Environment = &Env{}

// New opens the session selected by config and computes the spaces.
// Real tasks dial the remote address unless a session is given; dummy tasks
// fall back to a zero-observation session.
func New(ctx context.Context, config Config, opts ...Option) (*Env, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if err := config.normalize(o.session != nil); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger := o.logger.With("task", config.Task)

	session := o.session
	if session == nil {
		var err error
		session, err = openSession(ctx, config, logger)
		if err != nil {
			return nil, err
		}
	}

	e := &Env{
		config:  config,
		session: session,
		logger:  logger,
		state:   awaitingReset,
	}
	if err := e.computeSpaces(ctx); err != nil {
		session.Close()
		return nil, err
	}
	logger.Info("environment ready",
		"repeat", config.Repeat,
		"spaces", config.Spaces,
		"observations", len(e.observationSpace),
	)
	return e, nil
}

func openSession(ctx context.Context, config Config, logger *slog.Logger) (types.Session, error) {
	if config.Task == TaskDummy {
		return sim.NewDummySession(), nil
	}
	client, err := remote.Dial(ctx, remote.ClientConfig{
		Address: config.Address,
		Timeout: config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening session at %s: %w", config.Address, err)
	}
	if config.LeaseRedis == "" {
		return client, nil
	}
	leased, err := remote.NewLeasedSession(ctx, client, remote.LeaseConfig{
		RedisAddr: config.LeaseRedis,
		Robot:     config.Address,
		TTL:       config.LeaseTTL,
	})
	if err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("robot leased", "robot", config.Address, "token", leased.Lease().Token(), "ttl", config.LeaseTTL)
	return leased, nil
}

func (e *Env) computeSpaces(ctx context.Context) error {
	specs, err := e.session.ObservationSpec(ctx)
	if err != nil {
		return fmt.Errorf("querying observation spec: %w", err)
	}
	e.ignore = ignoredChannels(specs)
	for key := range e.ignore {
		e.logger.Info("ignoring empty observation channel", "key", key)
	}

	funcs := spacePolicies[e.config.Spaces]
	var actionSpec types.NativeSpec
	if e.config.Spaces == SpacesDerived {
		actionSpec, err = e.session.ActionSpec(ctx)
		if err != nil {
			return fmt.Errorf("querying action spec: %w", err)
		}
	}
	if e.observationSpace, err = funcs.observation(specs, e.ignore); err != nil {
		return err
	}
	if e.actionSpace, err = funcs.action(actionSpec); err != nil {
		return err
	}
	return nil
}

// ObservationSpace returns a copy of the space computed at construction
func (e *Env) ObservationSpace() types.Spaces {
	return e.observationSpace.Clone()
}

// ActionSpace returns a copy of the space computed at construction
func (e *Env) ActionSpace() types.Spaces {
	return e.actionSpace.Clone()
}

// Step resets the session when asked to or when no episode is open,
// otherwise repeats the action up to Repeat times and sums the rewards.
//
// Panics on a non-finite action vector (before touching any state) and on a
// discount other than 0 or 1.
func (e *Env) Step(ctx context.Context, action types.Action) (types.Observation, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.state.needsReset(action.Reset) {
		return e.reset(ctx)
	}
	if !util.AllFinite(action.Vector) {
		panic(fmt.Errorf("%w: %v", ErrNonFiniteAction, action.Vector))
	}

	var timeStep types.TimeStep
	reward := 0.0
	for i := 0; i < e.config.Repeat; i++ {
		var err error
		timeStep, err = e.session.Step(ctx, action.Vector)
		if err != nil {
			e.state = e.state.afterError()
			return nil, fmt.Errorf("session step: %w", err)
		}
		reward += timeStep.RewardOrZero()
		e.state = e.state.afterStep(timeStep.Last())
		if timeStep.Last() {
			// never keep acting on a finished episode
			e.logger.Debug("episode ended", "repeats", i+1, "discount", timeStep.Discount)
			break
		}
	}
	if timeStep.Discount != 0 && timeStep.Discount != 1 {
		panic(fmt.Errorf("%w: got %v", ErrInvalidDiscount, timeStep.Discount))
	}
	return e.observation(timeStep, reward), nil
}

func (e *Env) reset(ctx context.Context) (types.Observation, error) {
	timeStep, err := e.session.Reset(ctx)
	if err != nil {
		e.state = e.state.afterError()
		return nil, fmt.Errorf("session reset: %w", err)
	}
	e.state = e.state.afterReset()
	return e.observation(timeStep, 0), nil
}

// observation assembles the per-step mapping from a time-step
func (e *Env) observation(timeStep types.TimeStep, reward float64) types.Observation {
	obs := make(types.Observation, len(e.observationSpace))
	for key, value := range timeStep.Observation {
		if e.ignore[key] {
			continue
		}
		if _, declared := e.observationSpace[key]; !declared {
			continue
		}
		if value.Rank() == 0 {
			value = types.Array{DType: value.DType, Shape: []int{1}, Data: value.Data}
		}
		obs[key] = value
	}
	for key := range e.observationSpace {
		if _, ok := obs[key]; !ok && !types.IsBookkeepingKey(key) {
			panic(fmt.Errorf("%w: %q", ErrMissingObservation, key))
		}
	}
	obs[types.KeyReward] = types.Scalar(types.Float32, float64(float32(reward)))
	obs[types.KeyIsFirst] = types.BoolScalar(timeStep.First())
	obs[types.KeyIsLast] = types.BoolScalar(timeStep.Last())
	obs[types.KeyIsTerminal] = types.BoolScalar(timeStep.Discount == 0)
	return obs
}

// Close releases the session. It is safe to call more than once and before
// any episode was opened.
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.state = awaitingReset
	if err := e.session.Close(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// Repeat returns the configured action repeat
func (e *Env) Repeat() int {
	return e.config.Repeat
}

// EpisodeOpen reports whether the next step continues the current episode
func (e *Env) EpisodeOpen() bool {
	return e.state == running
}
