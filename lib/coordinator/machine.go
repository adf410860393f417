// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// MachineConfig configures a Machine.
type MachineConfig struct {
	// Publisher receives every event the machine derives. Required.
	Publisher ceremony.Publisher

	// Patterns is the table the machine matches against. Nil uses
	// DefaultPatterns.
	Patterns *PatternSet

	// Logger receives a Debug record per transition. Nil discards.
	Logger *slog.Logger
}

// Machine reconstructs the coordinator's round lifecycle from its
// output lines. A Machine is not safe for concurrent use: exactly one
// goroutine feeds it lines, in the order the coordinator wrote them.
type Machine struct {
	patterns  *PatternSet
	publisher ceremony.Publisher
	logger    *slog.Logger
	phase     Phase
}

// NewMachine returns a Machine in PhaseProcessStarted.
func NewMachine(config MachineConfig) *Machine {
	patterns := config.Patterns
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		patterns:  patterns,
		publisher: config.Publisher,
		logger:    logger,
		phase:     processStarted(),
	}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// ProcessLine consumes one line of coordinator output. Every event the
// line produces has been published when ProcessLine returns nil. A
// non-nil error is a *CaptureError or *PublishError; the machine must
// not be fed further lines after one, since its view of the
// coordinator can no longer be trusted.
func (m *Machine) ProcessLine(ctx context.Context, line string) error {
	round := m.phase.Round

	switch m.phase.Kind {
	case PhaseProcessStarted:
		if _, ok := m.patterns.Match(CategoryBootCompleted, line); ok {
			m.logger.Debug("coordinator booted")
			return m.advance(ctx, ceremony.RoundWaitingForParticipants(1), waitingForParticipants(1))
		}

	case PhaseWaitingForParticipants:
		if err := m.checkParticipantDropped(ctx, line); err != nil {
			return err
		}
		if match, ok := m.patterns.Match(CategoryRoundStarted, line); ok {
			if err := m.checkRound(match, round); err != nil {
				return err
			}
			m.logger.Debug("round started", "round", round)
			return m.advance(ctx, ceremony.RoundStarted(round), roundRunning(round))
		}

	case PhaseRoundRunning:
		if err := m.checkParticipantDropped(ctx, line); err != nil {
			return err
		}
		// The remaining checks are independent of one another and all
		// run against the round the line arrived in.
		if match, ok := m.patterns.Match(CategoryRoundStartedAggregation, line); ok {
			if err := m.checkRound(match, round); err != nil {
				return err
			}
			m.logger.Debug("round started aggregation", "round", round)
			if err := m.advance(ctx, ceremony.RoundStartedAggregation(round), roundAggregating(round)); err != nil {
				return err
			}
		}
		if _, ok := m.patterns.Match(CategoryRoundRestartedNoContributors, line); ok {
			m.logger.Debug("round restarted with no remaining contributors", "round", round)
			if err := m.advance(ctx, ceremony.ShutdownRequested(ceremony.ShutdownTestFinished), roundFinished(round)); err != nil {
				return err
			}
		}
		if match, ok := m.patterns.Match(CategorySuccessfulContribution, line); ok {
			address, err := m.parseAddress(match)
			if err != nil {
				return err
			}
			chunk, err := parseNumber(match, GroupChunk)
			if err != nil {
				return err
			}
			m.logger.Debug("successful contribution", "round", round, "contributor", address.String(), "chunk", chunk)
			if err := m.publish(ctx, ceremony.SuccessfulContribution(address, chunk)); err != nil {
				return err
			}
		}

	case PhaseRoundAggregating:
		if match, ok := m.patterns.Match(CategoryRoundAggregated, line); ok {
			if err := m.checkRound(match, round); err != nil {
				return err
			}
			m.logger.Debug("round aggregated", "round", round)
			return m.advance(ctx, ceremony.RoundAggregated(round), waitingForFinish(round))
		}

	case PhaseWaitingForFinish:
		if match, ok := m.patterns.Match(CategoryRoundFinished, line); ok {
			if err := m.checkRound(match, round); err != nil {
				return err
			}
			m.logger.Debug("round finished", "round", round)
			return m.advance(ctx, ceremony.RoundFinished(round), roundFinished(round))
		}

	case PhaseRoundFinished:
		// Intentionally ignores the line: the coordinator prints
		// nothing that marks the next round opening, so the first
		// line after a finish is taken as that moment.
		next := round + 1
		m.logger.Debug("round waiting for participants", "round", next)
		return m.advance(ctx, ceremony.RoundWaitingForParticipants(next), waitingForParticipants(next))
	}

	return nil
}

// checkParticipantDropped publishes ParticipantDropped when line
// reports a dropped participant.
func (m *Machine) checkParticipantDropped(ctx context.Context, line string) error {
	match, ok := m.patterns.Match(CategoryParticipantDropped, line)
	if !ok {
		return nil
	}
	address, err := m.parseAddress(match)
	if err != nil {
		return err
	}
	roleToken := match.Group(GroupRole)
	role, err := identity.ParseRole(roleToken)
	if err != nil {
		return &CaptureError{
			Category: match.Category,
			Group:    GroupRole,
			Value:    roleToken,
			Kind:     ErrUnknownRole,
			Err:      err,
		}
	}
	participant := identity.Participant{Address: address, Role: role}
	m.logger.Debug("participant dropped", "round", m.phase.Round, "participant", participant.CoordinatorID())
	return m.publish(ctx, ceremony.ParticipantDropped(participant))
}

func (m *Machine) parseAddress(match Match) (identity.Address, error) {
	value := match.Group(GroupAddress)
	address, err := identity.ParseAddress(value)
	if err != nil {
		return identity.Address{}, &CaptureError{
			Category: match.Category,
			Group:    GroupAddress,
			Value:    value,
			Kind:     ErrAddressParse,
			Err:      err,
		}
	}
	return address, nil
}

// checkRound parses the round the coordinator printed. The tracked
// round stays authoritative; a disagreement is only logged.
func (m *Machine) checkRound(match Match, tracked uint64) error {
	printed, err := parseNumber(match, GroupRound)
	if err != nil {
		return err
	}
	if printed != tracked {
		m.logger.Warn("coordinator round differs from tracked round",
			"category", match.Category.String(),
			"printed_round", printed,
			"tracked_round", tracked,
		)
	}
	return nil
}

func parseNumber(match Match, group string) (uint64, error) {
	value := match.Group(group)
	number, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, &CaptureError{
			Category: match.Category,
			Group:    group,
			Value:    value,
			Kind:     ErrNumberParse,
			Err:      err,
		}
	}
	return number, nil
}

// advance publishes event and, only once it is accepted, moves to next.
func (m *Machine) advance(ctx context.Context, event ceremony.Event, next Phase) error {
	if err := m.publish(ctx, event); err != nil {
		return err
	}
	m.phase = next
	return nil
}

func (m *Machine) publish(ctx context.Context, event ceremony.Event) error {
	if err := m.publisher.Publish(ctx, event); err != nil {
		return &PublishError{Event: event, Err: err}
	}
	return nil
}
