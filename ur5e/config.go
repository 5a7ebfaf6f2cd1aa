package ur5e

import (
	"errors"
	"fmt"
	"time"
)

// Task selects whether the environment talks to a real robot session
type Task string

const (
	TaskReal  Task = "real"
	TaskDummy Task = "dummy"
)

// SpacePolicy selects where the space descriptors come from
type SpacePolicy string

const (
	// Fixed table, usable without a live session
	SpacesHardcoded SpacePolicy = "hardcoded"
	// Copied from the session's declared specs
	SpacesDerived SpacePolicy = "derived"
)

type Config struct {
	Task    Task        `yaml:"task"`
	Address string      `yaml:"address"`
	Repeat  int         `yaml:"repeat"`
	Spaces  SpacePolicy `yaml:"spaces"`
	// Per-request timeout of the remote session client
	Timeout time.Duration `yaml:"timeout"`
	// Redis address used to lease the robot, empty disables leasing
	LeaseRedis string        `yaml:"lease_redis"`
	LeaseTTL   time.Duration `yaml:"lease_ttl"`
}

func DefaultConfig() Config {
	return Config{
		Task:     TaskDummy,
		Repeat:   1,
		Spaces:   SpacesHardcoded,
		Timeout:  30 * time.Second,
		LeaseTTL: time.Minute,
	}
}

var ErrConfig = errors.New("invalid environment config")

func (c *Config) normalize(hasSession bool) error {
	if c.Task == "" {
		c.Task = TaskDummy
	}
	if c.Spaces == "" {
		c.Spaces = SpacesHardcoded
	}
	switch c.Task {
	case TaskReal, TaskDummy:
	default:
		return fmt.Errorf("%w: unknown task %q", ErrConfig, c.Task)
	}
	switch c.Spaces {
	case SpacesHardcoded, SpacesDerived:
	default:
		return fmt.Errorf("%w: unknown space policy %q", ErrConfig, c.Spaces)
	}
	if c.Repeat < 1 {
		return fmt.Errorf("%w: repeat must be at least 1, got %d", ErrConfig, c.Repeat)
	}
	if c.Task == TaskDummy && c.Spaces == SpacesDerived {
		return fmt.Errorf("%w: dummy task cannot derive spaces from a session", ErrConfig)
	}
	if c.Task == TaskReal && c.Address == "" && !hasSession {
		return fmt.Errorf("%w: real task needs an address", ErrConfig)
	}
	return nil
}
