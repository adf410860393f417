// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// RoundState is the membership snapshot the coordinator persists for
// each round. IDs have the form "<address>.<role>".
type RoundState struct {
	ContributorIDs []string `json:"contributorIds"`
	VerifierIDs    []string `json:"verifierIds"`
}

// RoundStatePath returns the snapshot path for round within run.
func RoundStatePath(run RunConfig, round uint64) string {
	return filepath.Join(run.TranscriptDir(), "round_"+strconv.FormatUint(round, 10), "state.json")
}

// ReadRoundState reads and decodes a snapshot. Failures are
// *MembershipFileError.
func ReadRoundState(path string) (*RoundState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MembershipFileError{Path: path, Err: err}
	}
	var state RoundState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &MembershipFileError{Path: path, Err: fmt.Errorf("decoding: %w", err)}
	}
	return &state, nil
}

// CheckParticipantsInRound verifies that every contributor appears in
// round's snapshot, returning a *MissingParticipantError for the first
// one absent. Verifier membership is not checked.
func CheckParticipantsInRound(run RunConfig, round uint64, contributors []identity.Address) error {
	state, err := ReadRoundState(RoundStatePath(run, round))
	if err != nil {
		return err
	}
	for _, address := range contributors {
		id := identity.NewContributor(address).CoordinatorID()
		if !slices.Contains(state.ContributorIDs, id) {
			return &MissingParticipantError{Round: round, ID: id}
		}
	}
	return nil
}

// Roster is the expected membership of a round, as written by an
// operator. Roster files are JSONC: comments and trailing commas are
// allowed.
type Roster struct {
	Contributors []identity.Address `json:"contributors"`
	Verifiers    []identity.Address `json:"verifiers,omitempty"`
}

// ParseRoster decodes JSONC roster content.
func ParseRoster(data []byte) (*Roster, error) {
	var roster Roster
	if err := json.Unmarshal(jsonc.ToJSON(data), &roster); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	return &roster, nil
}

// ReadRoster reads and decodes a roster file.
func ReadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	roster, err := ParseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return roster, nil
}
