// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Source is the coordinator's output stream. Required.
	Source io.Reader

	// Archive receives every successfully read line. Nil disables
	// archiving (replay of an existing archive).
	Archive *Archive

	// Machine consumes the lines. Required.
	Machine *Machine

	// Logger receives one Error record per read error. Nil discards.
	Logger *slog.Logger

	// MaxConsecutiveReadErrors stops the loop with ErrReadErrorLimit
	// after this many read errors in a row. Zero means no limit.
	MaxConsecutiveReadErrors int

	// ReportReadError, when set, is called with every
	// *LineReadError in addition to logging it.
	ReportReadError func(error)
}

// Result summarizes one monitoring session.
type Result struct {
	// Lines is the number of lines read and processed.
	Lines int

	// ReadErrors is the number of lines that could not be read.
	ReadErrors int

	// FinalPhase is the machine's phase when the loop ended.
	FinalPhase Phase
}

// Monitor drives one Machine over one line source until the source
// ends. It owns the source, the archive handle, and the machine for
// the duration of Run.
type Monitor struct {
	source          *bufio.Reader
	archive         *Archive
	machine         *Machine
	logger          *slog.Logger
	maxReadErrors   int
	reportReadError func(error)
}

// NewMonitor validates config and returns a Monitor.
func NewMonitor(config MonitorConfig) (*Monitor, error) {
	if config.Source == nil {
		return nil, errors.New("monitor: Source is required")
	}
	if config.Machine == nil {
		return nil, errors.New("monitor: Machine is required")
	}
	if config.MaxConsecutiveReadErrors < 0 {
		return nil, fmt.Errorf("monitor: MaxConsecutiveReadErrors must be >= 0, got %d", config.MaxConsecutiveReadErrors)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		source:          bufio.NewReader(config.Source),
		archive:         config.Archive,
		machine:         config.Machine,
		logger:          logger,
		maxReadErrors:   config.MaxConsecutiveReadErrors,
		reportReadError: config.ReportReadError,
	}, nil
}

// Run reads lines until end of stream and returns a nil error when the
// stream closes normally. Read errors are logged, counted, and
// skipped.
//
// Every line that was read is archived after the machine has processed
// it, whatever the outcome. A line that fails with a *CaptureError or
// *PublishError is therefore the last line in the archive: it is
// written, then the loop stops and returns the error (joined with the
// archive's error if that write also failed).
//
// The loop blocks on the source and does not watch ctx between lines;
// ctx is handed to the publisher. To stop a running monitor, close the
// source (terminate the coordinator).
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	var result Result
	consecutive := 0
	lineNumber := 0

	for {
		raw, readErr := m.source.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			lineNumber++
			result.ReadErrors++
			consecutive++
			m.readFailed(&LineReadError{LineNumber: lineNumber, Err: readErr})
			if m.maxReadErrors > 0 && consecutive >= m.maxReadErrors {
				result.FinalPhase = m.machine.Phase()
				return result, fmt.Errorf("%w: %d in a row, last: %v", ErrReadErrorLimit, consecutive, readErr)
			}
			continue
		}

		// A final line without a trailing newline still counts.
		if raw != "" {
			lineNumber++
			line := trimLineEnding(raw)
			if !utf8.ValidString(line) {
				result.ReadErrors++
				consecutive++
				m.readFailed(&LineReadError{LineNumber: lineNumber, Err: errors.New("line is not valid UTF-8")})
				if m.maxReadErrors > 0 && consecutive >= m.maxReadErrors {
					result.FinalPhase = m.machine.Phase()
					return result, fmt.Errorf("%w: %d in a row", ErrReadErrorLimit, consecutive)
				}
			} else {
				consecutive = 0
				result.Lines++
				if err := m.processLine(ctx, line); err != nil {
					result.FinalPhase = m.machine.Phase()
					return result, err
				}
			}
		}

		if readErr != nil {
			result.FinalPhase = m.machine.Phase()
			return result, nil
		}
	}
}

func (m *Monitor) processLine(ctx context.Context, line string) error {
	parseErr := m.machine.ProcessLine(ctx, line)
	if m.archive != nil {
		if err := m.archive.Append(line); err != nil {
			if parseErr != nil {
				return errors.Join(parseErr, err)
			}
			return err
		}
	}
	return parseErr
}

func (m *Monitor) readFailed(err *LineReadError) {
	m.logger.Error("reading coordinator output",
		"line_number", err.LineNumber,
		"error", err.Err,
	)
	if m.reportReadError != nil {
		m.reportReadError(err)
	}
}

func trimLineEnding(raw string) string {
	line := strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(line, "\r")
}
