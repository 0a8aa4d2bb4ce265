package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Schema is the DDL backing PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS manifest_documents (
	key TEXT PRIMARY KEY,
	version BIGINT NOT NULL,
	value JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresStore persists documents in a single table and implements
// CompareAndSwap with a version predicate on UPDATE. Subscribers are local
// to the process.
type PostgresStore struct {
	db     *sqlx.DB
	hub    *Hub
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresStore constructs the store over an open connection pool.
func NewPostgresStore(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, hub: NewHub(), logger: logger, now: time.Now}
}

// Get implements Store.
func (p *PostgresStore) Get(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := p.db.GetContext(ctx, &rec, `SELECT key, version, value FROM manifest_documents WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List implements Store.
func (p *PostgresStore) List(ctx context.Context, prefix string) ([]Record, error) {
	records := make([]Record, 0)
	err := p.db.SelectContext(ctx, &records,
		`SELECT key, version, value FROM manifest_documents WHERE key LIKE $1 ESCAPE '\' ORDER BY key`,
		escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Set implements Store. JSONB parameters are sent as text since lib/pq encodes []byte as bytea.
func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) (int64, error) {
	var version int64
	err := p.db.QueryRowxContext(ctx, `INSERT INTO manifest_documents (key, version, value, updated_at)
VALUES ($1, 1, $2, $3)
ON CONFLICT (key) DO UPDATE SET version = manifest_documents.version + 1, value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
RETURNING version`, key, string(value), p.now().UTC()).Scan(&version)
	if err != nil {
		return 0, err
	}
	p.hub.Publish(Event{Type: EventPut, Key: key, Version: version, Value: value})
	return version, nil
}

// Delete implements Store.
func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM manifest_documents WHERE key = $1`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	p.hub.Publish(Event{Type: EventDelete, Key: key})
	return nil
}

// CompareAndSwap implements Store.
func (p *PostgresStore) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (int64, error) {
	now := p.now().UTC()
	switch {
	case value == nil:
		res, err := p.db.ExecContext(ctx, `DELETE FROM manifest_documents WHERE key = $1 AND version = $2`, key, expected)
		if err != nil {
			return 0, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, ErrVersionConflict
		}
		p.hub.Publish(Event{Type: EventDelete, Key: key, Version: expected})
		return 0, nil
	case expected == 0:
		var version int64
		err := p.db.QueryRowxContext(ctx, `INSERT INTO manifest_documents (key, version, value, updated_at)
VALUES ($1, 1, $2, $3) ON CONFLICT (key) DO NOTHING RETURNING version`, key, string(value), now).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrVersionConflict
		}
		if err != nil {
			return 0, err
		}
		p.hub.Publish(Event{Type: EventPut, Key: key, Version: version, Value: value})
		return version, nil
	default:
		var version int64
		err := p.db.QueryRowxContext(ctx, `UPDATE manifest_documents SET version = version + 1, value = $1, updated_at = $2
WHERE key = $3 AND version = $4 RETURNING version`, string(value), now, key, expected).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrVersionConflict
		}
		if err != nil {
			return 0, err
		}
		p.hub.Publish(Event{Type: EventPut, Key: key, Version: version, Value: value})
		return version, nil
	}
}

// Subscribe implements Store.
func (p *PostgresStore) Subscribe(prefix string, fn func(Event)) func() {
	return p.hub.Subscribe(prefix, fn)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
