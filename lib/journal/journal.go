// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/clock"
	"github.com/bureau-foundation/ceremony-monitor/lib/eventstream"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq         INTEGER PRIMARY KEY,
	observed_at INTEGER NOT NULL,
	kind        TEXT    NOT NULL,
	round       INTEGER NOT NULL,
	event_round INTEGER NOT NULL DEFAULT 0,
	address     TEXT    NOT NULL DEFAULT '',
	role        TEXT    NOT NULL DEFAULT '',
	chunk       INTEGER NOT NULL DEFAULT 0,
	reason      TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS events_by_round ON events (round, seq);
`

const selectColumns = "SELECT seq, observed_at, kind, round, event_round, address, role, chunk, reason FROM events"

// Config configures Open.
type Config struct {
	// Path is the SQLite database file. Required.
	Path string

	// Clock stamps observed_at. Nil uses clock.Real().
	Clock clock.Clock

	// Logger records open, close, and write failures. Nil discards.
	Logger *slog.Logger
}

// Entry is one recorded event.
type Entry struct {
	Sequence   uint64
	ObservedAt time.Time

	// Round is the round the ceremony was in when the event was
	// observed.
	Round uint64

	Event ceremony.Event
}

// Journal records events in a SQLite database. Record and Drain must
// be called from one goroutine; queries may run concurrently with
// them.
type Journal struct {
	pool   *sqlitex.Pool
	clock  clock.Clock
	logger *slog.Logger
	path   string

	sequence uint64
	round    uint64
}

// Open opens or creates the journal at config.Path. An existing
// journal is extended: sequence numbers and round attribution continue
// from its last row.
func Open(ctx context.Context, config Config) (*Journal, error) {
	if config.Path == "" {
		return nil, errors.New("journal: Path is required")
	}
	journalClock := config.Clock
	if journalClock == nil {
		journalClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize:    2,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: opening %s: %w", config.Path, err)
	}
	journal := &Journal{
		pool:   pool,
		clock:  journalClock,
		logger: logger,
		path:   config.Path,
	}

	if err := journal.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("event journal opened", "path", config.Path, "next_sequence", journal.sequence+1)
	return journal, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("journal: %s: %w", pragma, err)
		}
	}
	return nil
}

func (j *Journal) initialize(ctx context.Context) error {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: take: %w", err)
	}
	defer j.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("journal: creating schema: %w", err)
	}
	return sqlitex.Execute(conn, "SELECT seq, round FROM events ORDER BY seq DESC LIMIT 1", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			j.sequence = uint64(stmt.ColumnInt64(0))
			j.round = uint64(stmt.ColumnInt64(1))
			return nil
		},
	})
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, event ceremony.Event) error {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: take: %w", err)
	}
	defer j.pool.Put(conn)

	round := j.round
	if event.Kind.IsRound() {
		round = event.Round
	}
	frame := eventstream.NewFrame(j.sequence+1, event)

	err = sqlitex.Execute(conn,
		`INSERT INTO events (seq, observed_at, kind, round, event_round, address, role, chunk, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				int64(frame.Sequence),
				j.clock.Now().UnixNano(),
				frame.Kind.String(),
				int64(round),
				int64(frame.Round),
				frame.Address,
				frame.Role,
				int64(frame.Chunk),
				frame.Reason,
			},
		})
	if err != nil {
		return fmt.Errorf("journal: recording %s: %w", event, err)
	}
	j.sequence = frame.Sequence
	j.round = round
	return nil
}

// Drain records every event from events until the channel closes. A
// failed write is logged and returned; the caller should close its
// subscription so publishers are not held up.
func (j *Journal) Drain(ctx context.Context, events <-chan ceremony.Event) error {
	for event := range events {
		if err := j.Record(ctx, event); err != nil {
			j.logger.Error("event journal write failed", "path", j.path, "error", err)
			return err
		}
	}
	return nil
}

// Count returns the number of recorded events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal: take: %w", err)
	}
	defer j.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM events", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("journal: counting events: %w", err)
	}
	return count, nil
}

// EventsForRound returns every event observed during round, in order.
func (j *Journal) EventsForRound(ctx context.Context, round uint64) ([]Entry, error) {
	return j.query(ctx, selectColumns+" WHERE round = ? ORDER BY seq", int64(round))
}

// Entries returns every recorded event, in order.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, selectColumns+" ORDER BY seq")
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: take: %w", err)
	}
	defer j.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entry, err := scanEntry(stmt)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("journal: querying events: %w", err)
	}
	return entries, nil
}

func scanEntry(stmt *sqlite.Stmt) (Entry, error) {
	kind, err := ceremony.ParseKind(stmt.ColumnText(2))
	if err != nil {
		return Entry{}, fmt.Errorf("row %d: %w", stmt.ColumnInt64(0), err)
	}
	frame := eventstream.Frame{
		Sequence: uint64(stmt.ColumnInt64(0)),
		Kind:     kind,
		Round:    uint64(stmt.ColumnInt64(4)),
		Address:  stmt.ColumnText(5),
		Role:     stmt.ColumnText(6),
		Chunk:    uint64(stmt.ColumnInt64(7)),
		Reason:   stmt.ColumnText(8),
	}
	event, err := frame.Event()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Sequence:   frame.Sequence,
		ObservedAt: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
		Round:      uint64(stmt.ColumnInt64(3)),
		Event:      event,
	}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.pool.Close(); err != nil {
		return fmt.Errorf("journal: closing %s: %w", j.path, err)
	}
	j.logger.Info("event journal closed", "path", j.path, "events", j.sequence)
	return nil
}
