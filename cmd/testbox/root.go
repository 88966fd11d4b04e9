package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/engine"
	"github.com/rickgorman/testbox/pkg/testbox"
)

// stopTimeout bounds teardown once the command context is canceled.
const stopTimeout = 30 * time.Second

// engineClient is the engine the commands talk to.
type engineClient interface {
	engine.Engine
	Close() error
}

// connect opens the engine connection. Tests replace it.
var connect = func(logger *log.Logger) (engineClient, error) {
	return engine.NewDocker(engine.WithLogger(logger))
}

type globalOptions struct {
	debug  bool
	logger *log.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "testbox",
		Short: "Start throwaway containers that are ready when you get them",
		Long: `testbox starts containers on free host ports, waits until they are
ready to accept traffic and removes them again when you are done.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "testbox",
			})
			if opts.debug {
				opts.logger.SetLevel(log.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log engine calls and readiness checks")

	cmd.AddCommand(
		newRunCmd(opts),
		newUpCmd(opts),
		newBuildCmd(opts),
		newInfoCmd(opts),
	)

	return cmd
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// cleanupFailedStart removes the container a failed Start left behind.
func cleanupFailedStart(name string, err error) {
	var startErr *testbox.StartError
	if !errors.As(err, &startErr) {
		return
	}

	ctx, cancel := teardownContext()
	defer cancel()
	if cleanupErr := startErr.Cleanup(ctx); cleanupErr != nil {
		ui.Warn("%s: could not remove container %s: %v", name, startErr.ContainerID, cleanupErr)
		return
	}
	ui.DimMsg("%s: removed container %s", name, startErr.ContainerID)
}

// teardownContext outlives the command context so containers can be removed
// after an interrupt.
func teardownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), stopTimeout)
}
