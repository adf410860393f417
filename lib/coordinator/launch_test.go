// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/bureau-foundation/ceremony-monitor/lib/clock"
)

// writeScript writes an executable /bin/sh script standing in for the
// coordinator and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-coordinator")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("writing fake coordinator: %v", err)
	}
	return path
}

func launchScript(t *testing.T, body string, processClock clock.Clock) (*Process, string) {
	t.Helper()
	output := t.TempDir()
	process, err := Launch(LaunchConfig{
		Run:        RunConfig{Binary: writeScript(t, body), OutputDirectory: output},
		ConfigPath: "/etc/ceremony/config.toml",
		Stderr:     io.Discard,
		Clock:      processClock,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	return process, output
}

// waitForLine reads one line from the process, failing on EOF.
func waitForLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading fake coordinator output: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

func TestLaunchContract(t *testing.T) {
	process, output := launchScript(t, `echo "$1 $2"
pwd -P
echo "$RUST_BACKTRACE $RUST_LOG"`, nil)

	data, err := io.ReadAll(process.Stdout())
	if err != nil {
		t.Fatalf("reading stdout: %v", err)
	}
	if err := process.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if process.ExitCode() != 0 {
		t.Errorf("ExitCode = %d, want 0", process.ExitCode())
	}

	canonicalOutput, err := filepath.EvalSymlinks(output)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	want := []string{"--config /etc/ceremony/config.toml", canonicalOutput, "1 debug"}
	if len(lines) != len(want) {
		t.Fatalf("output lines = %q, want %q", lines, want)
	}
	for index := range want {
		if lines[index] != want[index] {
			t.Errorf("line %d = %q, want %q", index, lines[index], want[index])
		}
	}
	if !filepath.IsAbs(process.Binary()) {
		t.Errorf("Binary = %s, want an absolute path", process.Binary())
	}
}

func TestLaunchMissingBinary(t *testing.T) {
	_, err := Launch(LaunchConfig{
		Run:        RunConfig{Binary: filepath.Join(t.TempDir(), "absent"), OutputDirectory: t.TempDir()},
		ConfigPath: "/etc/ceremony/config.toml",
	})
	if !errors.Is(err, ErrProcessLaunch) {
		t.Fatalf("error = %v, want ErrProcessLaunch", err)
	}
}

func TestWaitClassifiesExit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantSignal syscall.Signal
	}{
		{"exit status", "exit 3", 3, 0},
		{"killed unexpectedly", "kill -KILL $$", -1, syscall.SIGKILL},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			process, _ := launchScript(t, test.body, nil)
			io.Copy(io.Discard, process.Stdout())

			err := process.Wait()
			var exitError *ExitError
			if !errors.As(err, &exitError) {
				t.Fatalf("Wait = %v, want *ExitError", err)
			}
			if exitError.Code != test.wantCode || exitError.Signal != test.wantSignal {
				t.Errorf("ExitError = %+v, want code %d signal %v", exitError, test.wantCode, test.wantSignal)
			}
		})
	}
}

func TestTerminateGraceful(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	process, _ := launchScript(t, "echo ready\nexec sleep 60", fake)
	reader := bufio.NewReader(process.Stdout())
	waitForLine(t, reader)

	if err := process.Terminate(time.Minute); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	io.Copy(io.Discard, reader)
	if err := process.Wait(); err != nil {
		t.Fatalf("Wait after Terminate = %v, want nil", err)
	}
	if fake.PendingCount() != 0 {
		t.Errorf("escalation timer still pending after exit")
	}
	// A second request is a no-op.
	if err := process.Terminate(time.Minute); err != nil {
		t.Errorf("second Terminate: %v", err)
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	process, _ := launchScript(t, "trap '' TERM\necho ready\nwhile :; do sleep 1; done", fake)
	reader := bufio.NewReader(process.Stdout())
	waitForLine(t, reader)

	if err := process.Terminate(30 * time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	fake.WaitForTimers(1)
	fake.Advance(30 * time.Second)

	done := make(chan error, 1)
	go func() {
		io.Copy(io.Discard, reader)
		done <- process.Wait()
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait after escalation = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("process survived SIGKILL escalation")
	}
}

func TestTerminateImmediate(t *testing.T) {
	process, _ := launchScript(t, "trap '' TERM\necho ready\nwhile :; do sleep 1; done", nil)
	reader := bufio.NewReader(process.Stdout())
	waitForLine(t, reader)

	if err := process.Terminate(-1); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	io.Copy(io.Discard, reader)
	if err := process.Wait(); err != nil {
		t.Errorf("Wait after kill = %v, want nil", err)
	}
}
