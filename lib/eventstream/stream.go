// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package eventstream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/codec"
	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// Frame is the on-disk form of one event. Fields irrelevant to the
// kind are omitted.
type Frame struct {
	Sequence uint64        `cbor:"seq"`
	Kind     ceremony.Kind `cbor:"kind"`
	Round    uint64        `cbor:"round,omitempty"`
	Address  string        `cbor:"address,omitempty"`
	Role     string        `cbor:"role,omitempty"`
	Chunk    uint64        `cbor:"chunk,omitempty"`
	Reason   string        `cbor:"reason,omitempty"`
}

// NewFrame converts event to its frame form.
func NewFrame(sequence uint64, event ceremony.Event) Frame {
	frame := Frame{Sequence: sequence, Kind: event.Kind}
	switch event.Kind {
	case ceremony.KindParticipantDropped:
		frame.Address = event.Participant.Address.String()
		frame.Role = event.Participant.Role.String()
	case ceremony.KindSuccessfulContribution:
		frame.Address = event.Participant.Address.String()
		frame.Role = event.Participant.Role.String()
		frame.Chunk = event.Chunk
	case ceremony.KindShutdownRequested:
		frame.Reason = event.Reason.String()
	default:
		frame.Round = event.Round
	}
	return frame
}

// Event reconstructs the event a frame was built from.
func (f Frame) Event() (ceremony.Event, error) {
	switch f.Kind {
	case ceremony.KindParticipantDropped, ceremony.KindSuccessfulContribution:
		address, err := identity.ParseAddress(f.Address)
		if err != nil {
			return ceremony.Event{}, fmt.Errorf("frame %d: %w", f.Sequence, err)
		}
		role, err := identity.ParseRole(f.Role)
		if err != nil {
			return ceremony.Event{}, fmt.Errorf("frame %d: %w", f.Sequence, err)
		}
		if f.Kind == ceremony.KindSuccessfulContribution {
			return ceremony.SuccessfulContribution(address, f.Chunk), nil
		}
		return ceremony.ParticipantDropped(identity.Participant{Address: address, Role: role}), nil
	case ceremony.KindShutdownRequested:
		reason, err := ceremony.ParseShutdownReason(f.Reason)
		if err != nil {
			return ceremony.Event{}, fmt.Errorf("frame %d: %w", f.Sequence, err)
		}
		return ceremony.ShutdownRequested(reason), nil
	default:
		if !f.Kind.IsRound() {
			return ceremony.Event{}, fmt.Errorf("frame %d: unknown event kind %d", f.Sequence, f.Kind)
		}
		return ceremony.Event{Kind: f.Kind, Round: f.Round}, nil
	}
}

// Writer appends event frames to a file.
type Writer struct {
	file     *os.File
	encoder  *codec.Encoder
	sequence uint64
	logger   *slog.Logger
}

// Create truncates or creates the stream file at path.
func Create(path string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating event stream %s: %w", path, err)
	}
	return &Writer{
		file:    file,
		encoder: codec.NewEncoder(file),
		logger:  logger.With("event_stream", path),
	}, nil
}

// Write appends one event frame.
func (w *Writer) Write(event ceremony.Event) error {
	w.sequence++
	if err := w.encoder.Encode(NewFrame(w.sequence, event)); err != nil {
		return fmt.Errorf("writing event frame %d: %w", w.sequence, err)
	}
	return nil
}

// Drain writes every event received on events until the channel is
// closed. A write failure stops draining and is returned; the caller
// should close the subscription so publishers are not held up.
func (w *Writer) Drain(events <-chan ceremony.Event) error {
	for event := range events {
		if err := w.Write(event); err != nil {
			return err
		}
	}
	w.logger.Debug("event stream drained", "frames", w.sequence)
	return nil
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() uint64 { return w.sequence }

// Close syncs and closes the stream file.
func (w *Writer) Close() error {
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return fmt.Errorf("syncing event stream: %w", err)
	}
	return w.file.Close()
}

// Read decodes every frame from r until end of input.
func Read(r io.Reader) ([]Frame, error) {
	decoder := codec.NewDecoder(r)
	var frames []Frame
	for {
		var frame Frame
		err := decoder.Decode(&frame)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decoding frame %d: %w", len(frames)+1, err)
		}
		frames = append(frames, frame)
	}
}

// ReadFile decodes the stream file at path.
func ReadFile(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	defer file.Close()
	frames, err := Read(file)
	if err != nil {
		return frames, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// Dump writes one line of CBOR diagnostic notation per frame in data.
func Dump(w io.Writer, data []byte) error {
	for len(data) > 0 {
		diagnostic, rest, err := codec.DiagnoseFirst(data)
		if err != nil {
			return fmt.Errorf("diagnosing event stream: %w", err)
		}
		if _, err := fmt.Fprintln(w, diagnostic); err != nil {
			return err
		}
		data = rest
	}
	return nil
}
