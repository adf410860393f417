// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command-tree framework behind the
// ceremony-monitor binary.
//
// A [Command] is either a group (Subcommands, no Run) or a leaf (Run,
// optional Flags). Flags are declared as a function returning a fresh
// pflag.FlagSet bound to variables captured by the command's
// constructor, so help output and parsing share one definition.
// Unknown subcommands get a "did you mean" suggestion.
//
// [NewCommandLogger] picks a text handler for terminals and JSON
// otherwise, both on stderr.
package cli
