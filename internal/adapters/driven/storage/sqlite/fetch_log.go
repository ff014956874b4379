package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// fetchLogStore implements driven.FetchLogStore.
type fetchLogStore struct {
	store *Store
}

var _ driven.FetchLogStore = (*fetchLogStore)(nil)

// Record appends an entry.
func (s *fetchLogStore) Record(ctx context.Context, rec *domain.FetchRecord) error {
	if rec == nil {
		return nil
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO fetch_log (source, entity, policy, started_at, ended_at, success, skipped, objects, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Source, rec.Entity, rec.Policy,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.EndedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(rec.Success), boolToInt(rec.Skipped),
		rec.Objects, nullString(rec.Error))
	if err != nil {
		return fmt.Errorf("recording fetch: %w", err)
	}
	return nil
}

// List returns the newest entries of source first.
func (s *fetchLogStore) List(ctx context.Context, source string, limit int) ([]domain.FetchRecord, error) {
	query := `
		SELECT source, entity, policy, started_at, ended_at, success, skipped, objects, error
		FROM fetch_log WHERE source = ? ORDER BY id DESC
	`
	args := []any{source}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying fetch log: %w", err)
	}
	defer rows.Close()

	var records []domain.FetchRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanFetchRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fetch log: %w", err)
	}
	return records, nil
}

// Prune keeps the newest keep entries per source.
func (s *fetchLogStore) Prune(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM fetch_log WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY source ORDER BY id DESC) AS rn
				FROM fetch_log
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning fetch log: %w", err)
	}
	return nil
}

// scanFetchRecord scans a fetch record from *sql.Rows.
func scanFetchRecord(rows *sql.Rows) (*domain.FetchRecord, error) {
	var rec domain.FetchRecord
	var startedAt, endedAt string
	var success, skipped int
	var errMsg sql.NullString

	if err := rows.Scan(&rec.Source, &rec.Entity, &rec.Policy, &startedAt, &endedAt,
		&success, &skipped, &rec.Objects, &errMsg); err != nil {
		return nil, fmt.Errorf("scanning fetch record: %w", err)
	}

	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		rec.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, endedAt); err == nil {
		rec.EndedAt = t
	}
	rec.Success = success == 1
	rec.Skipped = skipped == 1
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	return &rec, nil
}
