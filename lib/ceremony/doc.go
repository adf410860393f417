// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ceremony defines the lifecycle events published to ceremony
// participants while a coordinator runs.
//
// [Event] is a tagged union discriminated by [Kind]. Only the fields
// relevant to the kind are set; constructors such as [RoundStarted]
// and [ParticipantDropped] build well-formed values. Events flow from
// producers (the coordinator monitor) to consumers (contributor and
// verifier simulators, shutdown controllers, journals) through a
// [Publisher], which is implemented by lib/bus.
package ceremony
