package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/config"
	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/testbox"
)

func newBuildCmd(global *globalOptions) *cobra.Command {
	var (
		dockerfile string
		buildArgs  []string
	)

	cmd := &cobra.Command{
		Use:   "build DIR",
		Short: "Build an image under a generated name and print its reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := connect(global.logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			b := testbox.NewImageBuilder(eng).
				WithLogger(global.logger).
				WithContextDir(args[0]).
				WithDockerfile(dockerfile)
			for _, a := range buildArgs {
				k, v, err := config.ParseEnv(a)
				if err != nil {
					return err
				}
				b.WithBuildArg(k, v)
			}

			ui.Info("building %s", ui.Bold(args[0]))
			ref, err := b.Build(cmd.Context())
			if err != nil {
				return err
			}
			ui.Success("built %s", ref)

			_, err = fmt.Fprintln(cmd.OutOrStdout(), ref)
			return err
		},
	}

	cmd.Flags().StringVar(&dockerfile, "dockerfile", "", "Dockerfile path inside DIR (default \"Dockerfile\")")
	cmd.Flags().StringArrayVar(&buildArgs, "build-arg", nil, "build-time variable KEY=VALUE")

	return cmd
}
