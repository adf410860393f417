// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/version"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information and the executable's digest",
		Run: func(args []string) error {
			return printVersion(os.Stdout)
		},
	}
}

func printVersion(w io.Writer) error {
	fmt.Fprintf(w, "ceremony-monitor %s\n", version.Full())
	digest, path, err := version.SelfDigest()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  Executable: %s\n  BLAKE3: %s\n", path, digest)
	return nil
}
