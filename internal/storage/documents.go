package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	ierrors "github.com/tracardi/tracker-core/internal/errors"
)

// Put upserts a document by id into an index, storing it as JSONB —
// one document at a time, since the request-level fan-out
// (internal/tracker) is already the unit of parallelism.
func (s *Store) Put(ctx context.Context, idx Index, id string, document any) error {
	data, err := json.Marshal(document)
	if err != nil {
		return ierrors.InvalidArgument(fmt.Sprintf("document for %s/%s could not be encoded: %v", idx, id, err))
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			updated_at = CURRENT_TIMESTAMP
	`, tableName(idx))

	if _, err := s.db.ExecContext(ctx, query, id, data); err != nil {
		return ierrors.TransientDependency(fmt.Errorf("writing %s/%s: %w", idx, id, err))
	}
	return nil
}

// Get loads a document by id, decoding it into target. Returns
// sql.ErrNoRows itself (unwrapped) when the id is absent so callers can
// distinguish "not found" from a transient failure.
func (s *Store) Get(ctx context.Context, idx Index, id string, target any) error {
	var data []byte
	query := fmt.Sprintf(`SELECT document FROM %s WHERE id = $1`, tableName(idx))

	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err == sql.ErrNoRows {
		return err
	}
	if err != nil {
		return ierrors.TransientDependency(fmt.Errorf("reading %s/%s: %w", idx, id, err))
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", idx, id, err)
	}
	return nil
}

// Delete removes a document by id.
func (s *Store) Delete(ctx context.Context, idx Index, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableName(idx))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return ierrors.TransientDependency(fmt.Errorf("deleting %s/%s: %w", idx, id, err))
	}
	return nil
}

// Refresh makes recent writes to idx visible to subsequent reads. An
// Elasticsearch-backed store would need an explicit refresh between
// writing a session/profile and the next request reading it back;
// Postgres is read-your-writes consistent so this is a no-op. Kept as
// a real call so the ordering it enforces stays visible at the call
// site and under test.
func (s *Store) Refresh(ctx context.Context, idx Index) error {
	return nil
}

// Count returns how many documents an index holds. Not used on the
// request path.
func (s *Store) Count(ctx context.Context, idx Index) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName(idx))
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, ierrors.TransientDependency(fmt.Errorf("counting %s: %w", idx, err))
	}
	return n, nil
}

// FindByTraits returns the raw documents in idx whose JSONB payload
// contains every key/value in match, excluding excludeID, up to limit
// rows — the Profile Merger's duplicate lookup, expressed as a
// Postgres JSONB containment query (`@>`), the relational equivalent
// of an Elasticsearch terms-match-all query.
func (s *Store) FindByTraits(ctx context.Context, idx Index, match map[string]any, excludeID string, limit int) ([][]byte, error) {
	filter, err := json.Marshal(map[string]any{"traits": match})
	if err != nil {
		return nil, ierrors.InvalidArgument(fmt.Sprintf("encoding trait filter for %s: %v", idx, err))
	}

	query := fmt.Sprintf(`
		SELECT document FROM %s
		WHERE document @> $1::jsonb AND id != $2
		LIMIT $3
	`, tableName(idx))

	rows, err := s.db.QueryContext(ctx, query, filter, excludeID, limit)
	if err != nil {
		return nil, ierrors.TransientDependency(fmt.Errorf("querying %s by traits: %w", idx, err))
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, ierrors.TransientDependency(fmt.Errorf("scanning %s row: %w", idx, err))
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, ierrors.TransientDependency(fmt.Errorf("iterating %s rows: %w", idx, err))
	}
	return out, nil
}
