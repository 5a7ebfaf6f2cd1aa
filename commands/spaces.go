package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeu5/ur-rl-env/types"
	"github.com/zeu5/ur-rl-env/ur5e"
)

type spacesOutput struct {
	Observation types.Spaces `json:"observation"`
	Action      types.Spaces `json:"action"`
}

func SpacesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "spaces",
		Short: "Print the observation and action spaces as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			env, err := ur5e.New(cmd.Context(), config.Env, ur5e.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer env.Close()

			bs, err := json.MarshalIndent(spacesOutput{
				Observation: env.ObservationSpace(),
				Action:      env.ActionSpace(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(bs))
			return nil
		},
	}
}
