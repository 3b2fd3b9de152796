package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/core/domain"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"

	"github.com/google/uuid"
)

const (
	DEFAULT_LIST_LIMIT = 50
	MAX_LIST_LIMIT     = 1000
	timestampLayout    = "2006-01-02 15:04:05"
)

type JournalSQLite struct {
	db *sql.DB
}

func NewJournalSQLite(db *sql.DB) *JournalSQLite { return &JournalSQLite{db: db} }

// Append stores one command outcome. Missing id and time are filled in.
func (r *JournalSQLite) Append(ctx context.Context, e domain.JournalEntry) error {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var args *string
	if len(e.Args) > 0 {
		b, err := json.Marshal(e.Args)
		if err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
		s := string(b)
		args = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO command_journal (id, occurred_at, request, command, args, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Id,
		e.OccurredAt.UTC().Format(timestampLayout),
		e.Request,
		nullString(e.Command),
		args,
		e.Outcome,
		nullString(e.Reason),
	)
	return err
}

// List returns the newest entries first. limit is clamped to
// [1, MAX_LIST_LIMIT]; zero or negative means DEFAULT_LIST_LIMIT.
func (r *JournalSQLite) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = DEFAULT_LIST_LIMIT
	}
	limit = min(limit, MAX_LIST_LIMIT)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, occurred_at, request, command, args, outcome, reason
		FROM command_journal
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.JournalEntry, 0, limit)
	for rows.Next() {
		var (
			e                     domain.JournalEntry
			occurredAt            string
			command, args, reason sql.NullString
		)
		if err := rows.Scan(&e.Id, &occurredAt, &e.Request, &command, &args, &e.Outcome, &reason); err != nil {
			return nil, err
		}
		e.OccurredAt, err = parseTimestamp(occurredAt)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Id, err)
		}
		e.Command = command.String
		e.Reason = reason.String
		if args.Valid && args.String != "" {
			if err := json.Unmarshal([]byte(args.String), &e.Args); err != nil {
				return nil, fmt.Errorf("entry %s args: %w", e.Id, err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TIMESTAMP columns arrive as stored text, or as time values that
// database/sql formats as RFC 3339.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(timestampLayout, s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ port.CommandJournal = (*JournalSQLite)(nil)
