package commands

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeu5/ur-rl-env/sim"
	"github.com/zeu5/ur-rl-env/ur5e"
	"gopkg.in/yaml.v3"
)

var (
	configFile  string
	verbose     bool
	task        string
	address     string
	repeat      int
	spacePolicy string
	timeout     time.Duration
	leaseRedis  string
)

// FileConfig is the layout of the --config file
type FileConfig struct {
	Env ur5e.Config   `yaml:"env"`
	Arm sim.ArmConfig `yaml:"arm"`
}

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:          "ur-rl-env",
		Short:        "Drive a UR5e robot session as a reinforcement learning environment",
		SilenceUsage: true,
	}
	defaults := ur5e.DefaultConfig()
	rootCommand.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file, flags take precedence")
	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCommand.PersistentFlags().StringVar(&task, "task", string(defaults.Task), "Task to run: real or dummy")
	rootCommand.PersistentFlags().StringVar(&address, "address", "", "Address of the robot session server")
	rootCommand.PersistentFlags().IntVar(&repeat, "repeat", defaults.Repeat, "Number of times each action is applied")
	rootCommand.PersistentFlags().StringVar(&spacePolicy, "spaces", string(defaults.Spaces), "Where spaces come from: hardcoded or derived")
	rootCommand.PersistentFlags().DurationVar(&timeout, "timeout", defaults.Timeout, "Per-request timeout of the session client")
	rootCommand.PersistentFlags().StringVar(&leaseRedis, "lease-redis", "", "Redis address used to lease the robot")
	// adding the subcommands here
	rootCommand.AddCommand(RunCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(SpacesCommand())
	return rootCommand
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers the config file over the defaults and the flags the user
// set over the file
func loadConfig(cmd *cobra.Command) (FileConfig, error) {
	config := FileConfig{
		Env: ur5e.DefaultConfig(),
		Arm: sim.DefaultArmConfig(),
	}
	if configFile != "" {
		bs, err := os.ReadFile(configFile)
		if err != nil {
			return config, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(bs, &config); err != nil {
			return config, fmt.Errorf("parsing config %s: %w", configFile, err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("task") {
		config.Env.Task = ur5e.Task(task)
	}
	if flags.Changed("address") {
		config.Env.Address = address
	}
	if flags.Changed("repeat") {
		config.Env.Repeat = repeat
	}
	if flags.Changed("spaces") {
		config.Env.Spaces = ur5e.SpacePolicy(spacePolicy)
	}
	if flags.Changed("timeout") {
		config.Env.Timeout = timeout
	}
	if flags.Changed("lease-redis") {
		config.Env.LeaseRedis = leaseRedis
	}
	return config, nil
}
