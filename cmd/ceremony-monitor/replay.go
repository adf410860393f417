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

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
	"github.com/bureau-foundation/ceremony-monitor/lib/eventstream"
)

type replayOptions struct {
	eventsOut string
	verbose   bool
}

func replayCommand() *cli.Command {
	var options replayOptions
	return &cli.Command{
		Name:    "replay",
		Summary: "Derive events from an archived coordinator log",
		Description: `Derive events from an archived coordinator log.

Runs the archive through the same state machine the run command uses
and prints each event. Archives compressed with zstd (.zst) or lz4
(.lz4) are decompressed on the fly. The coordinator is not involved.`,
		Usage: "ceremony-monitor replay ARCHIVE [--events-out FILE]",
		Examples: []cli.Example{
			{
				Description: "Rebuild the event stream of a finished ceremony",
				Command:     "ceremony-monitor replay out/coordinator.log.zst --events-out replayed.cbor",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			flagSet.StringVar(&options.eventsOut, "events-out", "", "also write events to this CBOR event stream")
			flagSet.BoolVarP(&options.verbose, "verbose", "v", false, "log every state transition")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return errors.New("replay takes exactly one archive path")
			}
			return replayArchive(context.Background(), args[0], options, os.Stdout, cli.NewCommandLogger(options.verbose))
		},
	}
}

func replayArchive(ctx context.Context, path string, options replayOptions, stdout io.Writer, logger *slog.Logger) error {
	var writer *eventstream.Writer
	if options.eventsOut != "" {
		var err error
		writer, err = eventstream.Create(options.eventsOut, logger)
		if err != nil {
			return err
		}
	}

	publisher := ceremony.PublisherFunc(func(_ context.Context, event ceremony.Event) error {
		if _, err := fmt.Fprintln(stdout, event); err != nil {
			return err
		}
		if writer != nil {
			return writer.Write(event)
		}
		return nil
	})

	result, err := coordinator.ReplayFile(ctx, path, coordinator.ReplayConfig{
		Publisher: publisher,
		Logger:    logger,
	})
	if writer != nil {
		err = errors.Join(err, writer.Close())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d lines, final phase %s\n", result.Lines, result.FinalPhase)
	return nil
}
