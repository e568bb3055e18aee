package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
)

// DuckStore keeps state in the kv table of a DuckDB database.
type DuckStore struct {
	db *sql.DB
}

// NewDuckStore uses an open connection whose schema is migrated.
func NewDuckStore(db *sql.DB) *DuckStore {
	return &DuckStore{db: db}
}

func (s *DuckStore) Load(ctx context.Context) (Snapshot, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, Key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, eris.Wrap(err, "state: duckdb load")
	}
	snap, err := decode([]byte(value))
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *DuckStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		Key, string(data), time.Now().UTC(),
	)
	return eris.Wrap(err, "state: duckdb save")
}

func (s *DuckStore) Close() error { return s.db.Close() }
