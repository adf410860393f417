// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/ceremony-monitor/lib/binhash"
	"github.com/bureau-foundation/ceremony-monitor/lib/bus"
	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/clock"
)

// DefaultTerminationGrace is how long a terminated coordinator gets
// between SIGTERM and SIGKILL.
const DefaultTerminationGrace = 10 * time.Second

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	// Run describes the coordinator run. Required.
	Run RunConfig

	// Bus carries the derived events and delivers ShutdownRequested
	// back to the supervisor. Required.
	Bus *bus.Bus

	// Patterns overrides the default pattern table.
	Patterns *PatternSet

	// Compression is applied to the archive after the session.
	Compression Compression

	// TerminationGrace is the SIGTERM to SIGKILL delay. Zero uses
	// DefaultTerminationGrace.
	TerminationGrace time.Duration

	// MaxConsecutiveReadErrors is passed to the Monitor.
	MaxConsecutiveReadErrors int

	// Stderr receives the coordinator's standard error. Nil inherits.
	Stderr io.Writer

	Clock  clock.Clock
	Logger *slog.Logger
}

// SessionResult describes a finished coordinator run.
type SessionResult struct {
	Monitor      Result
	ExitCode     int
	ConfigPath   string
	ArchivePath  string
	BinaryDigest binhash.Digest
}

// Supervisor runs one coordinator session: it writes the
// configuration, launches the coordinator, monitors its output until
// it exits, and terminates it when a ShutdownRequested event appears
// on the bus.
type Supervisor struct {
	config SupervisorConfig
	logger *slog.Logger
}

// NewSupervisor validates config.
func NewSupervisor(config SupervisorConfig) (*Supervisor, error) {
	if config.Bus == nil {
		return nil, errors.New("supervisor: Bus is required")
	}
	if config.Run.Binary == "" {
		return nil, errors.New("supervisor: Run.Binary is required")
	}
	if config.Run.OutputDirectory == "" {
		return nil, errors.New("supervisor: Run.OutputDirectory is required")
	}
	if config.TerminationGrace == 0 {
		config.TerminationGrace = DefaultTerminationGrace
	}
	if config.Compression == "" {
		config.Compression = CompressionNone
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{config: config, logger: logger}, nil
}

// Run blocks until the coordinator exits and its output has been
// fully processed. Configuration and launch failures return before
// anything is started. A fatal monitor error terminates the
// coordinator and is returned after it exits; otherwise an abnormal
// exit is returned as an *ExitError. Canceling ctx terminates the
// coordinator and Run returns ctx's error once it is gone. The archive
// is closed (and compressed) in every case where it was opened.
func (s *Supervisor) Run(ctx context.Context) (SessionResult, error) {
	run := s.config.Run
	var result SessionResult

	configPath, _, err := WriteDocument(run)
	if err != nil {
		return result, err
	}
	result.ConfigPath = configPath
	s.logger.Info("wrote coordinator configuration", "path", configPath, "environment", string(run.Environment))

	digest, err := binhash.HashFile(run.Binary)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrProcessLaunch, err)
	}
	result.BinaryDigest = digest
	s.logger.Info("coordinator binary", "path", run.Binary, "blake3", digest.String())

	archive, err := OpenArchive(run.ArchivePath())
	if err != nil {
		return result, err
	}
	result.ArchivePath = archive.Path()

	// Subscribe before launch so no ShutdownRequested can be missed.
	subscription := s.config.Bus.Subscribe(16)

	process, err := Launch(LaunchConfig{
		Run:        run,
		ConfigPath: configPath,
		Stderr:     s.config.Stderr,
		Clock:      s.config.Clock,
		Logger:     s.logger,
	})
	if err != nil {
		subscription.Close()
		archive.Close()
		return result, err
	}

	machine := NewMachine(MachineConfig{
		Publisher: s.config.Bus.Publisher(),
		Patterns:  s.config.Patterns,
		Logger:    s.logger,
	})
	monitor, err := NewMonitor(MonitorConfig{
		Source:                   process.Stdout(),
		Archive:                  archive,
		Machine:                  machine,
		Logger:                   s.logger,
		MaxConsecutiveReadErrors: s.config.MaxConsecutiveReadErrors,
	})
	if err != nil {
		process.Terminate(0)
		process.Wait()
		subscription.Close()
		archive.Close()
		return result, err
	}

	group, groupContext := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer subscription.Close()

		// The coordinator keeps printing after a cancellation-driven
		// SIGTERM; those lines are still published.
		monitorResult, monitorErr := monitor.Run(context.WithoutCancel(groupContext))
		result.Monitor = monitorResult
		if monitorErr != nil {
			s.logger.Error("monitoring failed, terminating coordinator",
				"phase", monitorResult.FinalPhase.String(),
				"error", monitorErr,
			)
			if err := process.Terminate(s.config.TerminationGrace); err != nil {
				s.logger.Error("terminating coordinator", "error", err)
			}
		}

		exitErr := process.Wait()
		result.ExitCode = process.ExitCode()
		if monitorErr != nil {
			return monitorErr
		}
		return exitErr
	})

	group.Go(func() error {
		s.watchShutdown(groupContext, subscription, process)
		return nil
	})

	runErr := group.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	if err := archive.Close(); err != nil {
		s.logger.Error("closing archive", "error", err)
		if runErr == nil {
			runErr = err
		}
		return result, runErr
	}
	compressed, err := CompressArchive(archive.Path(), s.config.Compression)
	if err != nil {
		s.logger.Error("compressing archive", "error", err)
	} else {
		result.ArchivePath = compressed
	}

	s.logger.Info("coordinator session finished",
		"lines", result.Monitor.Lines,
		"read_errors", result.Monitor.ReadErrors,
		"final_phase", result.Monitor.FinalPhase.String(),
		"exit_code", result.ExitCode,
		"archive", result.ArchivePath,
	)
	return result, runErr
}

// watchShutdown terminates the coordinator on the first
// ShutdownRequested event or when ctx is done. It keeps draining the
// subscription until the monitor closes it, so publishers never block
// on this subscriber.
func (s *Supervisor) watchShutdown(ctx context.Context, subscription *bus.Subscription, process *Process) {
	events := subscription.Events()
	done := ctx.Done()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Kind != ceremony.KindShutdownRequested {
				continue
			}
			s.logger.Info("shutdown requested", "reason", event.Reason.String())
			if err := process.Terminate(s.config.TerminationGrace); err != nil {
				s.logger.Error("terminating coordinator", "error", err)
			}
		case <-done:
			done = nil
			s.logger.Info("supervision canceled, terminating coordinator")
			if err := process.Terminate(s.config.TerminationGrace); err != nil {
				s.logger.Error("terminating coordinator", "error", err)
			}
		}
	}
}
