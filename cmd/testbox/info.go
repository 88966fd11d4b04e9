package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/ui"
)

func newInfoCmd(global *globalOptions) *cobra.Command {
	var minVersion string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the container engine version and capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := connect(global.logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			info, err := eng.Info(cmd.Context())
			if err != nil {
				return err
			}

			ui.Field("version", info.Version)
			ui.Field("cpus", info.NCPU)
			ui.Field("memory", fmt.Sprintf("%.1f GiB", float64(info.MemTotal)/(1<<30)))
			ui.Field("host", eng.Host())

			if minVersion == "" {
				return nil
			}
			ok, err := info.AtLeast(minVersion)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("engine %s is older than %s", info.Version, minVersion)
			}
			ui.Success("engine is at least %s", minVersion)
			return nil
		},
	}

	cmd.Flags().StringVar(&minVersion, "min-version", "", "fail unless the engine is at least this version")

	return cmd
}
