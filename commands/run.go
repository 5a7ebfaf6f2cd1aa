package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zeu5/ur-rl-env/types"
	"github.com/zeu5/ur-rl-env/ur5e"
)

var (
	episodes   int
	horizon    int
	policyName string
	seed       uint64
	showReport bool
)

type runOptions struct {
	Episodes int
	Horizon  int
	Policy   string
	Seed     uint64
	Report   bool
}

func newPolicy(name string, actionSpace types.Spaces, seed uint64) (types.Policy, error) {
	switch name {
	case "random":
		return types.NewRandomPolicy(actionSpace, seed)
	case "zero":
		return types.NewZeroPolicy(actionSpace), nil
	}
	return nil, fmt.Errorf("unknown policy %q", name)
}

// runEpisodes drives env with the chosen policy, printing live progress to out
func runEpisodes(ctx context.Context, env types.Environment, opts runOptions, out io.Writer) (types.Summary, error) {
	policy, err := newPolicy(opts.Policy, env.ActionSpace(), opts.Seed)
	if err != nil {
		return types.Summary{}, err
	}

	printer := types.NewTerminalPrinter(out, 2)
	printer.Start()

	agent := types.NewAgent(&types.AgentConfig{
		Episodes:    opts.Episodes,
		Horizon:     opts.Horizon,
		Policy:      policy,
		Environment: env,
		OnEpisode: func(i int, trace *types.Trace, report *types.EpisodeReport) {
			printer.Set(0, fmt.Sprintf("Episode %d/%d, length %d, return %.3f", i+1, opts.Episodes, trace.Len()-1, trace.Return()))
			printer.Set(1, fmt.Sprintf("Step time %s", report.TotalTime("env_step")))
		},
	})
	runErr := agent.Run(ctx)
	printer.Stop()

	if opts.Report {
		for _, report := range agent.Reports() {
			fmt.Fprint(out, report.StringPerType())
		}
	}
	return types.Summarize(agent.Traces()), runErr
}

func RunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes against the environment with a fixed policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)

			doneCh := make(chan struct{})
			defer close(doneCh)

			ctx, cancel := context.WithCancel(cmd.Context())
			go func() {
				select {
				case <-sigCh:
				case <-doneCh:
				}
				cancel()
			}()

			env, err := ur5e.New(ctx, config.Env, ur5e.WithLogger(logger))
			if err != nil {
				return err
			}
			defer env.Close()

			logger.Info("running episodes", "episodes", episodes, "horizon", horizon, "policy", policyName, "repeat", env.Repeat())
			summary, err := runEpisodes(ctx, env, runOptions{
				Episodes: episodes,
				Horizon:  horizon,
				Policy:   policyName,
				Seed:     seed,
				Report:   showReport,
			}, cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}
	cmd.Flags().IntVarP(&episodes, "episodes", "e", 10, "Number of episodes to run")
	cmd.Flags().IntVar(&horizon, "horizon", 100, "Horizon of each episode")
	cmd.Flags().StringVarP(&policyName, "policy", "p", "random", "Policy driving the robot: random or zero")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed of the random policy, 0 picks one")
	cmd.Flags().BoolVar(&showReport, "report", false, "Print the timing report of every episode")
	return cmd
}
