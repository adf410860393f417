// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/ceremony-monitor/lib/clock"
)

// launchEnvironment is appended to the parent environment so the
// coordinator logs every transition the machine depends on.
var launchEnvironment = []string{
	"RUST_BACKTRACE=1",
	"RUST_LOG=debug",
}

// LaunchConfig configures Launch.
type LaunchConfig struct {
	// Run supplies the binary and the output directory, which becomes
	// the coordinator's working directory.
	Run RunConfig

	// ConfigPath is the canonical path returned by WriteDocument.
	ConfigPath string

	// Stderr receives the coordinator's standard error. Nil inherits
	// the monitor's.
	Stderr io.Writer

	// Clock schedules SIGKILL escalation. Nil uses clock.Real().
	Clock clock.Clock

	// Logger records launch and termination. Nil discards.
	Logger *slog.Logger
}

// Process is a running coordinator in its own process group.
type Process struct {
	command  *exec.Cmd
	stdout   io.ReadCloser
	clock    clock.Clock
	logger   *slog.Logger
	binary   string
	exited   chan struct{}
	stopping atomic.Bool

	mu         sync.Mutex
	escalation *clock.Timer
}

// Launch starts the coordinator with --config and a piped stdout.
// Failures wrap ErrProcessLaunch.
func Launch(config LaunchConfig) (*Process, error) {
	binary, err := canonicalPath(config.Run.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessLaunch, err)
	}
	if config.ConfigPath == "" {
		return nil, fmt.Errorf("%w: ConfigPath is required", ErrProcessLaunch)
	}
	processClock := config.Clock
	if processClock == nil {
		processClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stderr := config.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	command := exec.Command(binary, "--config", config.ConfigPath)
	command.Dir = config.Run.OutputDirectory
	command.Env = append(os.Environ(), launchEnvironment...)
	command.Stderr = stderr
	// Own process group, so termination reaches anything the
	// coordinator spawns.
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessLaunch, err)
	}
	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrProcessLaunch, binary, err)
	}

	logger.Info("coordinator started",
		"binary", binary,
		"pid", command.Process.Pid,
		"config", config.ConfigPath,
		"working_directory", command.Dir,
	)
	return &Process{
		command: command,
		stdout:  stdout,
		clock:   processClock,
		logger:  logger,
		binary:  binary,
		exited:  make(chan struct{}),
	}, nil
}

// Stdout is the coordinator's output stream. It reaches EOF when the
// coordinator (and every process holding the pipe) exits.
func (p *Process) Stdout() io.Reader { return p.stdout }

// PID returns the coordinator's process ID, which is also its process
// group ID.
func (p *Process) PID() int { return p.command.Process.Pid }

// Binary returns the canonical path of the launched executable.
func (p *Process) Binary() string { return p.binary }

// Terminate sends SIGTERM to the process group, then SIGKILL if it is
// still running after grace. A non-positive grace sends SIGKILL
// immediately. Calls after the first only log.
func (p *Process) Terminate(grace time.Duration) error {
	if !p.stopping.CompareAndSwap(false, true) {
		p.logger.Debug("coordinator termination already requested")
		return nil
	}
	group := -p.command.Process.Pid

	if grace <= 0 {
		p.logger.Info("killing coordinator", "pid", p.PID())
		return p.signalGroup(group, unix.SIGKILL)
	}

	p.logger.Info("terminating coordinator", "pid", p.PID(), "grace", grace)
	if err := p.signalGroup(group, unix.SIGTERM); err != nil {
		return p.signalGroup(group, unix.SIGKILL)
	}
	p.mu.Lock()
	p.escalation = p.clock.AfterFunc(grace, func() {
		select {
		case <-p.exited:
			return
		default:
		}
		p.logger.Warn("coordinator ignored SIGTERM, escalating", "pid", p.PID(), "grace", grace)
		_ = p.signalGroup(group, unix.SIGKILL)
	})
	p.mu.Unlock()
	return nil
}

func (p *Process) signalGroup(group int, signal syscall.Signal) error {
	err := unix.Kill(group, signal)
	if errors.Is(err, unix.ESRCH) {
		// Already gone.
		return nil
	}
	if err != nil {
		return fmt.Errorf("sending %v to coordinator process group %d: %w", signal, -group, err)
	}
	return nil
}

// Wait waits for the coordinator to exit and classifies the exit.
// Exit status 0 and death by signal after Terminate are success;
// anything else is an *ExitError. Read Stdout to EOF before calling
// Wait.
func (p *Process) Wait() error {
	waitErr := p.command.Wait()
	close(p.exited)

	p.mu.Lock()
	if p.escalation != nil {
		p.escalation.Stop()
	}
	p.mu.Unlock()

	if waitErr == nil {
		p.logger.Info("coordinator exited", "pid", p.PID(), "exit_code", 0)
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return fmt.Errorf("waiting for coordinator: %w", waitErr)
	}
	return p.classify(exitErr)
}

func (p *Process) classify(exitErr *exec.ExitError) error {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return &ExitError{Code: exitErr.ExitCode()}
	}
	if status.Signaled() {
		if p.stopping.Load() {
			p.logger.Info("coordinator stopped", "pid", p.PID(), "signal", status.Signal().String())
			return nil
		}
		return &ExitError{Code: -1, Signal: status.Signal()}
	}
	return &ExitError{Code: status.ExitStatus()}
}

// ExitCode returns the exit status after Wait, or -1 when the process
// was killed by a signal or has not exited.
func (p *Process) ExitCode() int {
	if p.command.ProcessState == nil {
		return -1
	}
	return p.command.ProcessState.ExitCode()
}
