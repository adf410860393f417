// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package coordinator supervises an externally built ceremony
// coordinator binary and reconstructs its round lifecycle from the
// text it prints.
//
// The coordinator is opaque: nothing here inspects its state directly.
// Instead a [Machine] consumes stdout one line at a time, tests the
// line against the [PatternSet] entries relevant to the current
// [Phase], publishes the resulting [ceremony.Event] values, and
// advances. The lifecycle graph is:
//
//	ProcessStarted --boot--> WaitingForParticipants(1)
//	WaitingForParticipants(r) --round started--> RoundRunning(r)
//	RoundRunning(r) --aggregation started--> RoundAggregating(r)
//	RoundRunning(r) --no contributors remaining--> RoundFinished(r)
//	RoundAggregating(r) --aggregated--> WaitingForFinish(r)
//	WaitingForFinish(r) --finished--> RoundFinished(r)
//	RoundFinished(r) --any line--> WaitingForParticipants(r+1)
//
// Participant drops are recognized only while waiting for participants
// or running; contributions only while running. A line that matches a
// pattern but carries an invalid capture (malformed address, unknown
// role, unparseable number) is a [CaptureError]: it means the
// coordinator's output no longer matches what the machine expects, and
// monitoring stops rather than publishing a guess.
//
// A [Monitor] drives one Machine over one output stream, appending
// every line it reads to an [Archive]. A [Supervisor] owns a whole
// session: it writes the coordinator's TOML configuration [Document],
// launches the [Process], runs the Monitor to end of stream, and
// terminates the process group when a shutdown is requested.
//
// [CheckParticipantsInRound] verifies, after the fact, that expected
// contributors appear in a round's persisted state file.
package coordinator
