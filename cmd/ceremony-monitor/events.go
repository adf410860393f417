// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/eventstream"
	"github.com/bureau-foundation/ceremony-monitor/lib/journal"
)

type eventsOptions struct {
	configPath  string
	journalPath string
	streamPath  string
	round       int64
}

func eventsCommand() *cli.Command {
	var options eventsOptions
	return &cli.Command{
		Name:    "events",
		Summary: "List recorded ceremony events",
		Description: `List recorded ceremony events.

Reads the SQLite journal a run wrote, optionally limited to one round.
With --stream, dumps a CBOR event stream in diagnostic notation
instead. Without --journal or --stream the journal path comes from the
configuration file.`,
		Usage: "ceremony-monitor events [--journal FILE | --stream FILE] [--round N]",
		Examples: []cli.Example{
			{
				Description: "Events attributed to round 2",
				Command:     "ceremony-monitor events --journal out/events.db --round 2",
			},
			{
				Description: "Inspect an event stream",
				Command:     "ceremony-monitor events --stream out/events.cbor",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("events", pflag.ContinueOnError)
			addConfigFlag(flagSet, &options.configPath)
			flagSet.StringVar(&options.journalPath, "journal", "", "SQLite event journal")
			flagSet.StringVar(&options.streamPath, "stream", "", "CBOR event stream to dump")
			flagSet.Int64Var(&options.round, "round", -1, "only events attributed to this round")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if options.streamPath == "" && options.journalPath == "" {
				loaded, err := loadConfig(options.configPath)
				if err != nil {
					return err
				}
				options.journalPath = loaded.Journal.Path
			}
			return listEvents(context.Background(), options, os.Stdout)
		},
	}
}

func listEvents(ctx context.Context, options eventsOptions, stdout io.Writer) error {
	if options.streamPath != "" {
		if options.journalPath != "" {
			return errors.New("--journal and --stream are mutually exclusive")
		}
		data, err := os.ReadFile(options.streamPath)
		if err != nil {
			return fmt.Errorf("reading event stream: %w", err)
		}
		return eventstream.Dump(stdout, data)
	}

	// Open would create a missing journal.
	if _, err := os.Stat(options.journalPath); err != nil {
		return fmt.Errorf("event journal: %w", err)
	}
	eventJournal, err := journal.Open(ctx, journal.Config{Path: options.journalPath})
	if err != nil {
		return err
	}
	defer eventJournal.Close()

	var entries []journal.Entry
	if options.round >= 0 {
		entries, err = eventJournal.EventsForRound(ctx, uint64(options.round))
	} else {
		entries, err = eventJournal.Entries(ctx)
	}
	if err != nil {
		return err
	}

	table := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(table, "SEQ\tOBSERVED\tROUND\tEVENT\n")
	for _, entry := range entries {
		fmt.Fprintf(table, "%d\t%s\t%d\t%s\n",
			entry.Sequence,
			entry.ObservedAt.UTC().Format(time.RFC3339),
			entry.Round,
			entry.Event)
	}
	return table.Flush()
}
