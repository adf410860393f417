// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists ceremony events to SQLite for postmortem
// queries.
//
// A Journal is a bus subscriber: Drain records every event it
// receives, in order, with the time it was observed and the round the
// ceremony was in when it happened. Participant and contribution
// events carry no round of their own, so the journal attributes them
// to the most recent round event. That makes EventsForRound return
// everything that happened during a round, not only its phase changes.
//
// The database uses WAL mode so the events subcommand can query a
// journal while a supervisor is still writing it.
package journal
