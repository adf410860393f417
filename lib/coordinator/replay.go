// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
)

// ReplayConfig configures Replay.
type ReplayConfig struct {
	Publisher ceremony.Publisher
	Patterns  *PatternSet
	Logger    *slog.Logger
}

// Replay feeds an archived coordinator log through a fresh Machine and
// publishes what it derives. Nothing is archived. Read errors are
// fatal: an archive is a file, not a live pipe.
func Replay(ctx context.Context, source io.Reader, config ReplayConfig) (Result, error) {
	machine := NewMachine(MachineConfig{
		Publisher: config.Publisher,
		Patterns:  config.Patterns,
		Logger:    config.Logger,
	})
	monitor, err := NewMonitor(MonitorConfig{
		Source:                   source,
		Machine:                  machine,
		Logger:                   config.Logger,
		MaxConsecutiveReadErrors: 1,
	})
	if err != nil {
		return Result{}, err
	}
	return monitor.Run(ctx)
}

// ReplayFile replays the archive at path, decompressing .zst and .lz4
// archives.
func ReplayFile(ctx context.Context, path string, config ReplayConfig) (Result, error) {
	reader, err := OpenArchiveReader(path)
	if err != nil {
		return Result{}, err
	}
	defer reader.Close()

	result, err := Replay(ctx, reader, config)
	if err != nil {
		return result, fmt.Errorf("replaying %s: %w", path, err)
	}
	return result, nil
}
