package content

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/scribe/pkg/storage"
)

// Store handles post, tag and comment persistence
type Store struct {
	db *sql.DB
	q  storage.Querier
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store whose queries run inside tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx}
}

// inTx runs fn in a new transaction, or directly when the store is already
// bound to one
func (s *Store) inTx(ctx context.Context, fn func(q storage.Querier) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s.q)
	}
	return storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(tx)
	})
}

func (s *Store) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// missingIDs returns the ids absent from table, preserving input order
func missingIDs(ctx context.Context, q storage.Querier, table string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE id IN (%s)", table, storage.Placeholders(1, len(ids)))
	rows, err := q.QueryContext(ctx, query, storage.Int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", table, err)
	}
	defer rows.Close()

	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", table, err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
