package commands

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/zeu5/ur-rl-env/remote"
	"github.com/zeu5/ur-rl-env/sim"
)

var (
	listenAddr string
	maxSteps   int
	armSeed    uint64
)

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a simulated arm session over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-steps") {
				config.Arm.MaxSteps = maxSteps
			}
			if cmd.Flags().Changed("seed") {
				config.Arm.Seed = armSeed
			}
			logger := newLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			arm := sim.NewArm(config.Arm)
			server := remote.NewServer(ctx, listenAddr, arm, logger)
			server.Start()

			<-ctx.Done()
			logger.Info("shutting down")
			<-server.Done()
			return arm.Close()
		},
	}
	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "localhost:7070", "Address to serve the session on")
	cmd.Flags().IntVar(&maxSteps, "max-steps", sim.DefaultArmConfig().MaxSteps, "Steps before an episode is cut")
	cmd.Flags().Uint64Var(&armSeed, "seed", sim.DefaultArmConfig().Seed, "Seed of the object placement")
	return cmd
}
