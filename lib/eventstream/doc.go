// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventstream records ceremony events as a sequence of CBOR
// frames in a file, for consumers outside the monitor process (test
// harnesses, dashboards, postmortem tooling).
//
// A [Writer] is attached to a bus subscription with [Writer.Drain] and
// appends one [Frame] per event, numbering frames from 1 in delivery
// order. [ReadFile] decodes a stream back into frames and [Frame.Event]
// reconstructs the original event. [Dump] renders each frame in CBOR
// diagnostic notation.
package eventstream
