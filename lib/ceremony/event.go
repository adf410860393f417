// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ceremony

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// Kind discriminates the Event union.
type Kind uint8

const (
	KindRoundWaitingForParticipants Kind = iota + 1
	KindRoundStarted
	KindRoundStartedAggregation
	KindRoundAggregated
	KindRoundFinished
	KindParticipantDropped
	KindSuccessfulContribution
	KindShutdownRequested
)

var kindNames = map[Kind]string{
	KindRoundWaitingForParticipants: "round_waiting_for_participants",
	KindRoundStarted:                "round_started",
	KindRoundStartedAggregation:     "round_started_aggregation",
	KindRoundAggregated:             "round_aggregated",
	KindRoundFinished:               "round_finished",
	KindParticipantDropped:          "participant_dropped",
	KindSuccessfulContribution:      "successful_contribution",
	KindShutdownRequested:           "shutdown_requested",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, error) {
	for kind, kindName := range kindNames {
		if kindName == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsRound reports whether events of this kind carry a round number.
func (k Kind) IsRound() bool {
	switch k {
	case KindRoundWaitingForParticipants, KindRoundStarted, KindRoundStartedAggregation,
		KindRoundAggregated, KindRoundFinished:
		return true
	}
	return false
}

// ShutdownReason explains a ShutdownRequested event.
type ShutdownReason uint8

const (
	// ShutdownTestFinished means the ceremony has nothing left to do:
	// every contributor has left and the coordinator rolled back.
	ShutdownTestFinished ShutdownReason = iota + 1
	// ShutdownError means a participant hit an unrecoverable error.
	ShutdownError
)

func (r ShutdownReason) String() string {
	switch r {
	case ShutdownTestFinished:
		return "test_finished"
	case ShutdownError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// ParseShutdownReason is the inverse of ShutdownReason.String.
func ParseShutdownReason(name string) (ShutdownReason, error) {
	switch name {
	case "test_finished":
		return ShutdownTestFinished, nil
	case "error":
		return ShutdownError, nil
	default:
		return 0, fmt.Errorf("unknown shutdown reason %q", name)
	}
}

// Event is one ceremony lifecycle event.
//
// Round is set for round lifecycle kinds (see Kind.IsRound).
// Participant is set for ParticipantDropped and, with the Contributor
// role, for SuccessfulContribution, which also sets Chunk. Reason is
// set for ShutdownRequested.
type Event struct {
	Kind        Kind
	Round       uint64
	Participant identity.Participant
	Chunk       uint64
	Reason      ShutdownReason
}

func RoundWaitingForParticipants(round uint64) Event {
	return Event{Kind: KindRoundWaitingForParticipants, Round: round}
}

func RoundStarted(round uint64) Event {
	return Event{Kind: KindRoundStarted, Round: round}
}

func RoundStartedAggregation(round uint64) Event {
	return Event{Kind: KindRoundStartedAggregation, Round: round}
}

func RoundAggregated(round uint64) Event {
	return Event{Kind: KindRoundAggregated, Round: round}
}

func RoundFinished(round uint64) Event {
	return Event{Kind: KindRoundFinished, Round: round}
}

func ParticipantDropped(participant identity.Participant) Event {
	return Event{Kind: KindParticipantDropped, Participant: participant}
}

// SuccessfulContribution reports that contributor added a contribution
// to chunk.
func SuccessfulContribution(contributor identity.Address, chunk uint64) Event {
	return Event{
		Kind:        KindSuccessfulContribution,
		Participant: identity.NewContributor(contributor),
		Chunk:       chunk,
	}
}

func ShutdownRequested(reason ShutdownReason) Event {
	return Event{Kind: KindShutdownRequested, Reason: reason}
}

// String renders the event for logs and CLI output.
func (e Event) String() string {
	switch {
	case e.Kind.IsRound():
		return fmt.Sprintf("%s(%d)", e.Kind, e.Round)
	case e.Kind == KindParticipantDropped:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Participant)
	case e.Kind == KindSuccessfulContribution:
		return fmt.Sprintf("%s(%s, chunk %d)", e.Kind, e.Participant.Address, e.Chunk)
	case e.Kind == KindShutdownRequested:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Reason)
	default:
		return e.Kind.String()
	}
}

// Publisher accepts events for delivery to ceremony participants.
// Publish returns only after the event has been accepted; an error
// means the event was not delivered.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish calls f(ctx, event).
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}
