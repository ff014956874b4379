package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// recordStore implements driven.RecordStore for one source.
type recordStore struct {
	store  *Store
	source string
}

var _ driven.RecordStore = (*recordStore)(nil)

type objectKey struct {
	entity string
	key    string
}

// Load returns every object of the source with its relationships.
func (s *recordStore) Load(ctx context.Context) ([]domain.ObjectRecord, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity, key, attributes FROM objects
		WHERE source = ? ORDER BY entity, key
	`, s.source)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	var records []domain.ObjectRecord //nolint:prealloc // size unknown from query
	index := make(map[objectKey]int)
	for rows.Next() {
		var entity, key, attrs string
		if err := rows.Scan(&entity, &key, &attrs); err != nil {
			return nil, fmt.Errorf("scanning object: %w", err)
		}
		values, err := decodeValues(attrs)
		if err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", entity, key, err)
		}
		index[objectKey{entity, key}] = len(records)
		records = append(records, domain.ObjectRecord{
			ID:      domain.ObjectID{Entity: entity, Key: key},
			Values:  values,
			Related: make(map[string][]domain.ObjectID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}

	if err := s.loadRelationships(ctx, records, index); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *recordStore) loadRelationships(ctx context.Context, records []domain.ObjectRecord, index map[objectKey]int) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity, key, name, target_entity, target_key FROM relationships
		WHERE source = ? ORDER BY entity, key, name, position
	`, s.source)
	if err != nil {
		return fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entity, key, name, targetEntity, targetKey string
		if err := rows.Scan(&entity, &key, &name, &targetEntity, &targetKey); err != nil {
			return fmt.Errorf("scanning relationship: %w", err)
		}
		i, ok := index[objectKey{entity, key}]
		if !ok {
			continue
		}
		records[i].Related[name] = append(records[i].Related[name], domain.ObjectID{Entity: targetEntity, Key: targetKey})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating relationships: %w", err)
	}
	return nil
}

// Apply upserts records and removes deleted objects in one transaction.
func (s *recordStore) Apply(ctx context.Context, upserts []domain.ObjectRecord, deletes []domain.ObjectID) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, rec := range upserts {
		if err := s.upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	for _, id := range deletes {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM objects WHERE source = ? AND entity = ? AND key = ?
		`, s.source, id.Entity, id.Key); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *recordStore) upsert(ctx context.Context, tx *sql.Tx, rec domain.ObjectRecord) error {
	if rec.ID.Temporary {
		return fmt.Errorf("cannot persist temporary identifier %s", rec.ID)
	}
	attrs, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("marshalling %s: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO objects (source, entity, key, attributes, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source, entity, key) DO UPDATE SET
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`, s.source, rec.ID.Entity, rec.ID.Key, string(attrs))
	if err != nil {
		return fmt.Errorf("saving %s: %w", rec.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM relationships WHERE source = ? AND entity = ? AND key = ?
	`, s.source, rec.ID.Entity, rec.ID.Key); err != nil {
		return fmt.Errorf("clearing relationships of %s: %w", rec.ID, err)
	}

	for name, targets := range rec.Related {
		for pos, target := range targets {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO relationships (source, entity, key, name, position, target_entity, target_key)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, s.source, rec.ID.Entity, rec.ID.Key, name, pos, target.Entity, target.Key)
			if err != nil {
				return fmt.Errorf("saving %s.%s: %w", rec.ID, name, err)
			}
		}
	}
	return nil
}

// Close leaves the shared database open.
func (s *recordStore) Close() error {
	return nil
}

// decodeValues decodes attribute JSON. Integral numbers come back as
// int64, other numbers as float64.
func decodeValues(attrs string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(attrs)))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]any)
	}
	for k, v := range values {
		values[k] = normalizeNumber(v)
	}
	return values, nil
}

func normalizeNumber(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalizeNumber(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalizeNumber(t[k])
		}
		return t
	default:
		return v
	}
}
