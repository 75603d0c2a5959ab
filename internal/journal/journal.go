// Package journal keeps a bounded local history of uplink messages and
// downlink commands for diagnostics. It is not a delivery queue: nothing
// in it is ever resent.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"cloudpico-bridge/internal/migrate"
)

const pruneEvery = 100

type UplinkEntry struct {
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
	Payload string    `json:"payload"`
	Live    bool      `json:"live"`
	Sent    bool      `json:"sent"`
	Error   string    `json:"error,omitempty"`
}

type CommandEntry struct {
	ID       int64     `json:"id"`
	At       time.Time `json:"at"`
	Topic    string    `json:"topic"`
	Payload  []byte    `json:"payload"`
	Command  string    `json:"command"`
	Applied  bool      `json:"applied"`
	AckError string    `json:"ack_error,omitempty"`
}

type Journal struct {
	db        *sql.DB
	retention int
	logger    *slog.Logger
	writes    atomic.Uint64
}

// Open migrates db and returns a journal that keeps at most retention rows
// per table.
func Open(ctx context.Context, db *sql.DB, retention int, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := migrate.Run(ctx, db, logger); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &Journal{db: db, retention: retention, logger: logger}, nil
}

func (j *Journal) RecordUplink(ctx context.Context, e UplinkEntry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO uplink_messages (seq, created_at, payload, live, sent, error) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(e.Seq), formatTime(e.At), e.Payload, e.Live, e.Sent, nullString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("record uplink: %w", err)
	}
	j.maybePrune(ctx)
	return nil
}

func (j *Journal) RecordCommand(ctx context.Context, e CommandEntry) error {
	if e.Payload == nil {
		e.Payload = []byte{}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO downlink_commands (created_at, topic, payload, command, applied, ack_error) VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(e.At), e.Topic, e.Payload, e.Command, e.Applied, nullString(e.AckError),
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	j.maybePrune(ctx)
	return nil
}

// RecentUplinks returns up to limit entries, newest first.
func (j *Journal) RecentUplinks(ctx context.Context, limit int) ([]UplinkEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, created_at, payload, live, sent, error FROM uplink_messages ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query uplinks: %w", err)
	}
	defer rows.Close()

	out := []UplinkEntry{}
	for rows.Next() {
		var (
			e       UplinkEntry
			seq     int64
			at      string
			errText sql.NullString
		)
		if err := rows.Scan(&seq, &at, &e.Payload, &e.Live, &e.Sent, &errText); err != nil {
			return nil, fmt.Errorf("scan uplink: %w", err)
		}
		e.Seq = uint64(seq)
		e.At = parseTime(at)
		e.Error = errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentCommands returns up to limit entries, newest first.
func (j *Journal) RecentCommands(ctx context.Context, limit int) ([]CommandEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, created_at, topic, payload, command, applied, ack_error FROM downlink_commands ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	out := []CommandEntry{}
	for rows.Next() {
		var (
			e      CommandEntry
			at     string
			ackErr sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &e.Topic, &e.Payload, &e.Command, &e.Applied, &ackErr); err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		e.At = parseTime(at)
		e.AckError = ackErr.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune trims both tables to the retention limit and returns the number of
// rows removed.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM uplink_messages WHERE rowid NOT IN (SELECT rowid FROM uplink_messages ORDER BY rowid DESC LIMIT ?)`,
		`DELETE FROM downlink_commands WHERE id NOT IN (SELECT id FROM downlink_commands ORDER BY id DESC LIMIT ?)`,
	} {
		res, err := j.db.ExecContext(ctx, q, j.retention)
		if err != nil {
			return total, fmt.Errorf("prune: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Ping reports whether the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *Journal) maybePrune(ctx context.Context) {
	if j.writes.Add(1)%pruneEvery != 0 {
		return
	}
	n, err := j.Prune(ctx)
	if err != nil {
		j.logger.Warn("journal prune failed", "error", err)
		return
	}
	if n > 0 {
		j.logger.Debug("journal pruned", "rows", n)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
