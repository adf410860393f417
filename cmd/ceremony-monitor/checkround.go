// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// Returned when a participant is missing, distinct from the status 1
// used for errors reading the transcript.
const exitParticipantMissing = 2

type checkRoundOptions struct {
	configPath   string
	round        uint64
	roundSet     bool
	rosterPath   string
	contributors []string
}

func checkRoundCommand() *cli.Command {
	var (
		options checkRoundOptions
		flagSet *pflag.FlagSet
	)
	return &cli.Command{
		Name:    "check-round",
		Summary: "Verify that contributors are members of a round",
		Description: `Verify that contributors are members of a round.

Reads transcript/round_N/state.json under the configured output
directory and checks that every contributor appears in it. The
contributors come from a JSONC roster file, from --contributor flags,
or both. Verifier entries in a roster are accepted but not checked.

Exits 2 when a contributor is missing and 1 when the round state
cannot be read.`,
		Usage: "ceremony-monitor check-round --round N [--roster FILE] [--contributor ADDRESS]...",
		Examples: []cli.Example{
			{
				Description: "Check the contributors listed in a roster",
				Command:     "ceremony-monitor check-round --round 3 --roster round3.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = pflag.NewFlagSet("check-round", pflag.ContinueOnError)
			addConfigFlag(flagSet, &options.configPath)
			flagSet.Uint64Var(&options.round, "round", 0, "round number (required)")
			flagSet.StringVar(&options.rosterPath, "roster", "", "JSONC roster file")
			flagSet.StringSliceVar(&options.contributors, "contributor", nil, "contributor address (repeatable)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			// Round 0 is a real round; only an absent flag is missing.
			options.roundSet = flagSet.Changed("round")
			loaded, err := loadConfig(options.configPath)
			if err != nil {
				return err
			}
			environment, err := coordinator.ParseEnvironment(loaded.Coordinator.Environment)
			if err != nil {
				return err
			}
			run := coordinator.RunConfig{
				Environment:     environment,
				OutputDirectory: loaded.Coordinator.OutputDirectory,
			}
			return checkRound(run, options, os.Stdout, os.Stderr)
		},
	}
}

func checkRound(run coordinator.RunConfig, options checkRoundOptions, stdout, stderr io.Writer) error {
	if !options.roundSet {
		return errors.New("--round is required")
	}
	contributors, err := expectedContributors(options)
	if err != nil {
		return err
	}
	if len(contributors) == 0 {
		return errors.New("no contributors to check: pass --roster or --contributor")
	}

	err = coordinator.CheckParticipantsInRound(run, options.round, contributors)
	var missing *coordinator.MissingParticipantError
	if errors.As(err, &missing) {
		fmt.Fprintf(stderr, "%v\n", missing)
		return &cli.ExitError{Code: exitParticipantMissing}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "round %d: all %d contributors present\n", options.round, len(contributors))
	return nil
}

func expectedContributors(options checkRoundOptions) ([]identity.Address, error) {
	var contributors []identity.Address
	if options.rosterPath != "" {
		roster, err := coordinator.ReadRoster(options.rosterPath)
		if err != nil {
			return nil, err
		}
		contributors = append(contributors, roster.Contributors...)
	}
	for _, text := range options.contributors {
		address, err := identity.ParseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("--contributor: %w", err)
		}
		contributors = append(contributors, address)
	}
	return contributors, nil
}
