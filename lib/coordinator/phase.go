// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import "fmt"

// PhaseKind is the coordinator lifecycle state, without its round.
type PhaseKind uint8

const (
	// PhaseProcessStarted: the coordinator process has started but
	// has not reported booting.
	PhaseProcessStarted PhaseKind = iota
	// PhaseWaitingForParticipants: the round is waiting for enough
	// participants to start.
	PhaseWaitingForParticipants
	// PhaseRoundRunning: contributions and verifications are under
	// way.
	PhaseRoundRunning
	// PhaseRoundAggregating: all chunks are complete and the
	// coordinator is aggregating them.
	PhaseRoundAggregating
	// PhaseWaitingForFinish: aggregation is done; waiting for the
	// round to be reported finished.
	PhaseWaitingForFinish
	// PhaseRoundFinished: the round is over. This phase is transient:
	// the next line, whatever it says, moves the machine to the next
	// round's waiting phase.
	PhaseRoundFinished
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseProcessStarted:
		return "process_started"
	case PhaseWaitingForParticipants:
		return "waiting_for_participants"
	case PhaseRoundRunning:
		return "round_running"
	case PhaseRoundAggregating:
		return "round_aggregating"
	case PhaseWaitingForFinish:
		return "waiting_for_finish"
	case PhaseRoundFinished:
		return "round_finished"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Phase is the state machine's single state value. Round is zero only
// in PhaseProcessStarted.
type Phase struct {
	Kind  PhaseKind
	Round uint64
}

func (p Phase) String() string {
	if p.Kind == PhaseProcessStarted {
		return p.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", p.Kind, p.Round)
}

func processStarted() Phase { return Phase{Kind: PhaseProcessStarted} }

func waitingForParticipants(round uint64) Phase {
	return Phase{Kind: PhaseWaitingForParticipants, Round: round}
}

func roundRunning(round uint64) Phase { return Phase{Kind: PhaseRoundRunning, Round: round} }

func roundAggregating(round uint64) Phase { return Phase{Kind: PhaseRoundAggregating, Round: round} }

func waitingForFinish(round uint64) Phase { return Phase{Kind: PhaseWaitingForFinish, Round: round} }

func roundFinished(round uint64) Phase { return Phase{Kind: PhaseRoundFinished, Round: round} }
