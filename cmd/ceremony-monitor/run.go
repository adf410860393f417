// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ceremony-monitor/lib/bus"
	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/config"
	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
	"github.com/bureau-foundation/ceremony-monitor/lib/eventstream"
	"github.com/bureau-foundation/ceremony-monitor/lib/journal"
)

type runOptions struct {
	configPath string
	verbose    bool
}

func runCommand() *cli.Command {
	var options runOptions
	return &cli.Command{
		Name:    "run",
		Summary: "Launch the coordinator and monitor it until it exits",
		Description: `Launch the coordinator and monitor it until it exits.

Writes config.toml into the output directory, starts the coordinator
there, and follows its standard output. Every line is archived to
coordinator.log. Derived events are recorded in the journal and the
event stream when those are enabled.

SIGINT or SIGTERM stops the coordinator (SIGTERM, then SIGKILL after
the termination grace) and waits for its remaining output. The exit
status is the coordinator's when it fails.`,
		Usage: "ceremony-monitor run [--config PATH] [--verbose]",
		Examples: []cli.Example{
			{
				Description: "Run with an explicit configuration file",
				Command:     "ceremony-monitor run --config /etc/ceremony/monitor.yaml",
			},
			{
				Description: "Log every state transition",
				Command:     "CEREMONY_MONITOR_CONFIG=monitor.yaml ceremony-monitor run -v",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			addConfigFlag(flagSet, &options.configPath)
			flagSet.BoolVarP(&options.verbose, "verbose", "v", false, "log every state transition")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runMonitor(options)
		},
	}
}

func runMonitor(options runOptions) error {
	logger := cli.NewCommandLogger(options.verbose)

	loaded, err := loadConfig(options.configPath)
	if err != nil {
		return err
	}
	run, err := loaded.RunConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = superviseSession(ctx, loaded, run, logger, os.Stderr)
	var exitErr *coordinator.ExitError
	if errors.As(err, &exitErr) {
		logger.Error("coordinator failed", "error", err)
		return &cli.ExitError{Code: exitStatus(exitErr)}
	}
	return err
}

// exitStatus maps a coordinator failure to the monitor's own status,
// using the shell's 128+signal convention for signals.
func exitStatus(err *coordinator.ExitError) int {
	if err.Code < 0 {
		return 128 + int(err.Signal)
	}
	return err.Code
}

// superviseSession runs one coordinator session with the configured
// event sinks attached to the bus. Sinks keep recording after ctx is
// canceled so the coordinator's final output is not lost.
func superviseSession(ctx context.Context, loaded *config.Config, run coordinator.RunConfig, logger *slog.Logger, stderr io.Writer) (coordinator.SessionResult, error) {
	if err := os.MkdirAll(run.OutputDirectory, 0755); err != nil {
		return coordinator.SessionResult{}, fmt.Errorf("creating output directory: %w", err)
	}

	eventBus := bus.New()
	var (
		sinks   errgroup.Group
		closers []func() error
	)
	closeSinks := func() error {
		eventBus.Close()
		err := sinks.Wait()
		for _, closeSink := range closers {
			err = errors.Join(err, closeSink())
		}
		return err
	}

	sinkContext := context.WithoutCancel(ctx)
	if loaded.Journal.Enabled {
		eventJournal, err := openJournal(sinkContext, loaded.Journal.Path, logger)
		if err != nil {
			return coordinator.SessionResult{}, errors.Join(err, closeSinks())
		}
		closers = append(closers, eventJournal.Close)
		subscription := eventBus.Subscribe(64)
		sinks.Go(func() error {
			defer subscription.Close()
			return eventJournal.Drain(sinkContext, subscription.Events())
		})
	}
	if loaded.EventStream.Enabled {
		writer, err := createEventStream(loaded.EventStream.Path, logger)
		if err != nil {
			return coordinator.SessionResult{}, errors.Join(err, closeSinks())
		}
		closers = append(closers, writer.Close)
		subscription := eventBus.Subscribe(64)
		sinks.Go(func() error {
			defer subscription.Close()
			return writer.Drain(subscription.Events())
		})
	}

	supervisor, err := coordinator.NewSupervisor(coordinator.SupervisorConfig{
		Run:                      run,
		Bus:                      eventBus,
		Compression:              loaded.Compression(),
		TerminationGrace:         loaded.TerminationGrace(),
		MaxConsecutiveReadErrors: loaded.Coordinator.MaxConsecutiveReadErrors,
		Stderr:                   stderr,
		Logger:                   logger,
	})
	if err != nil {
		return coordinator.SessionResult{}, errors.Join(err, closeSinks())
	}

	result, err := supervisor.Run(ctx)
	if sinkErr := closeSinks(); sinkErr != nil {
		logger.Error("event sinks failed", "error", sinkErr)
		err = errors.Join(err, sinkErr)
	}
	return result, err
}

func openJournal(ctx context.Context, path string, logger *slog.Logger) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	return journal.Open(ctx, journal.Config{Path: path, Logger: logger})
}

func createEventStream(path string, logger *slog.Logger) (*eventstream.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating event stream directory: %w", err)
	}
	return eventstream.Create(path, logger)
}
