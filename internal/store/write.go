package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Append inserts one entry and returns its id. A zero CreatedAt is stamped
// with the current time.
func (s *Store) Append(ctx context.Context, e Entry) (int64, error) {
	id, err := appendEntry(ctx, s.db, e)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	return id, nil
}

// AppendBatch inserts entries in one transaction. Either all are written or
// none are.
func (s *Store) AppendBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i, e := range entries {
		if _, err := appendEntry(ctx, tx, e); err != nil {
			return fmt.Errorf("append batch: entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append batch: commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEntry(ctx context.Context, db execer, e Entry) (int64, error) {
	if e.Kind == "" {
		return 0, fmt.Errorf("entry has no kind")
	}
	data, err := marshalData(e.Data)
	if err != nil {
		return 0, err
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO journal
		(tick, kind, connection_id, participant, subject, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Tick,
		string(e.Kind),
		e.ConnectionID,
		e.Participant,
		e.Subject,
		data,
		created.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
