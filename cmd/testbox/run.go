package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgorman/testbox/internal/config"
	"github.com/rickgorman/testbox/internal/ui"
	"github.com/rickgorman/testbox/pkg/image"
	"github.com/rickgorman/testbox/pkg/ports"
	"github.com/rickgorman/testbox/pkg/testbox"
)

type runOptions struct {
	publish []string
	env     []string
	envFile string
	name    string
	volumes []string
	tmpfs   []string
	wait    string
	timeout time.Duration
	exec    string
	keep    bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run IMAGE [-- COMMAND...]",
		Short: "Start one container, wait for it and remove it",
		Example: `  testbox run redis:7 -p 6379 --wait "log:Ready to accept connections" --exec "redis-cli ping"
  testbox run postgres:16 -p 5432 -e POSTGRES_PASSWORD=secret --keep`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, global, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.publish, "publish", "p", nil, "container port to publish, e.g. 80 or 53/udp")
	flags.StringArrayVarP(&opts.env, "env", "e", nil, "environment variable KEY=VALUE")
	flags.StringVar(&opts.envFile, "env-file", "", "read environment variables from a file")
	flags.StringVar(&opts.name, "name", "", "container name")
	flags.StringArrayVarP(&opts.volumes, "volume", "v", nil, "bind mount SRC:DST[:ro]")
	flags.StringArrayVar(&opts.tmpfs, "tmpfs", nil, "tmpfs mount PATH[:OPTIONS]")
	flags.StringVar(&opts.wait, "wait", "default", "wait strategy: default, port, internal-port, health, log:TEXT, http:PATH[@PORT]")
	flags.DurationVar(&opts.timeout, "timeout", testbox.DefaultStartupTimeout, "how long to wait for readiness")
	flags.StringVar(&opts.exec, "exec", "", "run a shell command in the container once it is ready")
	flags.BoolVar(&opts.keep, "keep", false, "keep the container until interrupted")

	return cmd
}

// builder translates the flags into a testbox builder.
func (o *runOptions) builder(eng engineClient, args []string) (*testbox.Builder, error) {
	ref, err := image.Parse(args[0])
	if err != nil {
		return nil, err
	}

	b := testbox.New(eng, ref).
		WithName(o.name).
		WithStartupTimeout(o.timeout)

	if len(args) > 1 {
		b.WithCmd(args[1:]...)
	}
	if o.envFile != "" {
		b.WithEnvFile(o.envFile)
	}
	for _, e := range o.env {
		k, v, err := config.ParseEnv(e)
		if err != nil {
			return nil, err
		}
		b.WithEnv(k, v)
	}
	for _, s := range o.publish {
		p, err := ports.Parse(s)
		if err != nil {
			return nil, err
		}
		b.WithExposedPorts(p)
	}
	for _, s := range o.volumes {
		m, err := config.ParseMount(s)
		if err != nil {
			return nil, err
		}
		b.WithBindMount(m.Source, m.Target, m.Mode)
	}
	for _, s := range o.tmpfs {
		path, options, err := config.ParseTmpfs(s)
		if err != nil {
			return nil, err
		}
		b.WithTmpFs(map[string]string{path: options})
	}

	strategy, err := config.ParseWait(o.wait)
	if err != nil {
		return nil, err
	}
	return b.WithWaitStrategy(strategy), nil
}

func runRun(cmd *cobra.Command, global *globalOptions, opts *runOptions, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	eng, err := connect(global.logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	b, err := opts.builder(eng, args)
	if err != nil {
		return err
	}

	ui.Header("run")
	defer ui.Footer()

	ui.Info("starting %s", ui.Bold(args[0]))
	started := time.Now()
	c, err := b.WithLogger(global.logger).Start(ctx)
	if err != nil {
		cleanupFailedStart(args[0], err)
		return err
	}
	ui.Success("%s ready in %s", c.Name(), time.Since(started).Round(time.Millisecond))
	printBindings(c)

	var execErr error
	if opts.exec != "" {
		execErr = runExec(ctx, cmd, c, opts.exec)
	}

	if opts.keep && execErr == nil {
		ui.DimMsg("press Ctrl+C to stop")
		<-ctx.Done()
	}

	stopCtx, stopCancel := teardownContext()
	defer stopCancel()
	if _, err := c.Stop(stopCtx); err != nil {
		return err
	}
	ui.Success("%s removed", c.Name())

	return execErr
}

func runExec(ctx context.Context, cmd *cobra.Command, c *testbox.Container, command string) error {
	ui.Info("exec %s", ui.Bold(command))

	result, err := c.Exec(ctx, "/bin/sh", "-c", command)
	if err != nil {
		return err
	}
	if _, err := cmd.OutOrStdout().Write(result.Output); err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("command exited with code %d", result.ExitCode)
	}
	return nil
}

func printBindings(c *testbox.Container) {
	bindings, err := c.Ports()
	if err != nil {
		return
	}
	for _, b := range bindings {
		ui.Binding(b.Internal.String(), net.JoinHostPort(c.Host(), strconv.Itoa(b.Host.Number)))
	}
}
