// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Ceremony-monitor supervises a phase 1 setup coordinator. The run
// command writes the coordinator's config.toml, launches it, turns
// its log output into ceremony events, and stops it when the ceremony
// runs out of contributors. Events land in a SQLite journal and a CBOR
// event stream next to the coordinator's output.
//
// The remaining commands work on what a run leaves behind:
// check-round verifies round membership against the transcript,
// replay re-derives events from an archived log, and events lists a
// journal or dumps an event stream.
package main
