// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
)

var (
	// ErrAddressParse classifies a CaptureError whose address group
	// is not a valid participant address.
	ErrAddressParse = errors.New("malformed participant address")

	// ErrUnknownRole classifies a CaptureError whose role group is
	// neither "contributor" nor "verifier".
	ErrUnknownRole = errors.New("unknown participant role")

	// ErrNumberParse classifies a CaptureError whose round or chunk
	// group is not an unsigned 64-bit integer.
	ErrNumberParse = errors.New("malformed number")

	// ErrArchiveWrite wraps failures appending to the archive log.
	ErrArchiveWrite = errors.New("writing archive log")

	// ErrConfigSerialization wraps failures encoding the coordinator
	// configuration document.
	ErrConfigSerialization = errors.New("serializing coordinator configuration")

	// ErrConfigWrite wraps failures writing the configuration document
	// to disk.
	ErrConfigWrite = errors.New("writing coordinator configuration")

	// ErrProcessLaunch wraps failures starting the coordinator.
	ErrProcessLaunch = errors.New("launching coordinator")

	// ErrReadErrorLimit is returned by Monitor.Run when the output
	// stream produced more consecutive read errors than allowed.
	ErrReadErrorLimit = errors.New("too many consecutive read errors")
)

// CaptureError reports a line that matched a pattern but whose
// captured text could not be converted. It matches its Kind
// (ErrAddressParse, ErrUnknownRole, ErrNumberParse) and its
// underlying cause under errors.Is.
type CaptureError struct {
	Category Category
	Group    string
	Value    string
	Kind     error
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %s group %q = %q: %v", e.Kind, e.Category, e.Group, e.Value, e.Err)
}

func (e *CaptureError) Unwrap() []error { return []error{e.Kind, e.Err} }

// PublishError reports an event the publisher refused.
type PublishError struct {
	Event ceremony.Event
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing %s: %v", e.Event, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// LineReadError reports a single line that could not be read from the
// output stream. It is logged and counted, never fatal on its own.
type LineReadError struct {
	LineNumber int
	Err        error
}

func (e *LineReadError) Error() string {
	return fmt.Sprintf("reading line %d from coordinator output: %v", e.LineNumber, e.Err)
}

func (e *LineReadError) Unwrap() error { return e.Err }

// MembershipFileError reports a round state file that could not be
// read or decoded.
type MembershipFileError struct {
	Path string
	Err  error
}

func (e *MembershipFileError) Error() string {
	return fmt.Sprintf("round state file %s: %v", e.Path, e.Err)
}

func (e *MembershipFileError) Unwrap() error { return e.Err }

// MissingParticipantError names the first expected participant absent
// from a round's state file.
type MissingParticipantError struct {
	Round uint64
	ID    string
}

func (e *MissingParticipantError) Error() string {
	return fmt.Sprintf("unable to find contributor %s in round %d state file", e.ID, e.Round)
}

// ExitError reports a coordinator that exited unsuccessfully. Code is
// -1 when the process was killed by Signal.
type ExitError struct {
	Code   int
	Signal syscall.Signal
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("coordinator killed by signal %v", e.Signal)
	}
	return fmt.Sprintf("coordinator exited with status %d", e.Code)
}
