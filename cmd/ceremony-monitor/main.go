// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/process"
)

func main() {
	process.Exit(rootCommand().Execute(os.Args[1:]))
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "ceremony-monitor",
		Summary: "Supervise a setup ceremony coordinator",
		Description: `Supervise a setup ceremony coordinator.

The coordinator's log output is the only interface it offers. The
monitor derives round and participant events from it, archives every
line, and shuts the coordinator down when no contributors remain.`,
		Subcommands: []*cli.Command{
			runCommand(),
			checkRoundCommand(),
			replayCommand(),
			eventsCommand(),
			versionCommand(),
		},
	}
}
