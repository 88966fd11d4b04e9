package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgorman/testbox/internal/config"
	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/testbox"
)

func newUpCmd(global *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start every container of a definitions file until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, global, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "testbox.yaml", "definitions file")

	return cmd
}

func runUp(cmd *cobra.Command, global *globalOptions, file string) error {
	defs, err := config.Load(file)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	eng, err := connect(global.logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	ui.Header("up")
	defer ui.Footer()

	containers, startErr := startAll(ctx, eng, global, defs)
	for _, c := range containers {
		ui.Success("%s ready", c.Name())
		printBindings(c)
	}

	if startErr == nil {
		ui.DimMsg("press Ctrl+C to stop")
		<-ctx.Done()
	}

	if err := stopAll(containers); err != nil && startErr == nil {
		return err
	}
	return startErr
}

// startAll starts the definitions in parallel. Containers whose start failed
// are removed right away; the ones that did start are returned so they can
// be stopped.
func startAll(ctx context.Context, eng engineClient, global *globalOptions, defs *config.File) ([]*testbox.Container, error) {
	var (
		mu      sync.Mutex
		started []*testbox.Container
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, def := range defs.Containers {
		g.Go(func() error {
			b, err := def.Builder(eng, defs.Dir)
			if err != nil {
				return fmt.Errorf("%s: %w", def.DisplayName(), err)
			}

			ui.Info("starting %s", ui.Bold(def.DisplayName()))
			c, err := b.WithLogger(global.logger.With("container", def.DisplayName())).Start(gctx)
			if err != nil {
				cleanupFailedStart(def.DisplayName(), err)
				return fmt.Errorf("%s: %w", def.DisplayName(), err)
			}

			mu.Lock()
			started = append(started, c)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return started, err
}

func stopAll(containers []*testbox.Container) error {
	ctx, cancel := teardownContext()
	defer cancel()

	var g errgroup.Group
	for _, c := range containers {
		g.Go(func() error {
			if _, err := c.Stop(ctx); err != nil {
				ui.Fail("%s: %v", c.Name(), err)
				return err
			}
			ui.Success("%s removed", c.Name())
			return nil
		})
	}
	return g.Wait()
}
