package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	flowerrors "github.com/flowforge/runtime/pkg/errors"
)

// sqlRecordRow is the flat row shape credential_records maps to: the
// encrypted fields travel as-is, Metadata is stored as a JSON blob since
// its shape (tags, rotation policy) doesn't warrant its own columns.
type sqlRecordRow struct {
	ID         string `db:"id"`
	Kind       string `db:"kind"`
	Version    uint32 `db:"version"`
	Ciphertext []byte `db:"ciphertext"`
	Nonce      []byte `db:"nonce"`
	Tag        []byte `db:"tag"`
	Metadata   []byte `db:"metadata"`
}

func rowFromRecord(r *Record) (sqlRecordRow, error) {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return sqlRecordRow{}, flowerrors.Internal("marshal credential metadata", err)
	}
	return sqlRecordRow{
		ID:         r.ID,
		Kind:       r.Kind,
		Version:    r.Version,
		Ciphertext: r.Ciphertext,
		Nonce:      r.Nonce,
		Tag:        r.Tag,
		Metadata:   meta,
	}, nil
}

func (row sqlRecordRow) toRecord() (*Record, error) {
	var meta Metadata
	if err := json.Unmarshal(row.Metadata, &meta); err != nil {
		return nil, flowerrors.Internal("unmarshal credential metadata", err)
	}
	return &Record{
		ID:         row.ID,
		Kind:       row.Kind,
		Version:    row.Version,
		Ciphertext: row.Ciphertext,
		Nonce:      row.Nonce,
		Tag:        row.Tag,
		Metadata:   meta,
	}, nil
}

// SQLStateStore is a StateStore backed by a single credential_records
// table, for deployments that already run Postgres for internal.resource
// and would rather not stand up a second durability mechanism. Statements
// are issued through sqlx against the standard database/sql driver
// interface, so SQLStateStore works unmodified against sqlmock in tests.
type SQLStateStore struct {
	db *sqlx.DB
}

// NewSQLStateStore wraps an already-connected *sqlx.DB. Callers own the
// connection's lifecycle; SQLStateStore never closes it.
func NewSQLStateStore(db *sqlx.DB) *SQLStateStore {
	return &SQLStateStore{db: db}
}

const createTableStmt = `
CREATE TABLE IF NOT EXISTS credential_records (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	ciphertext BYTEA NOT NULL,
	nonce      BYTEA NOT NULL,
	tag        BYTEA NOT NULL,
	metadata   JSONB NOT NULL
)`

// EnsureSchema creates credential_records if it does not already exist.
func (s *SQLStateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableStmt); err != nil {
		return flowerrors.Internal("create credential_records table", err)
	}
	return nil
}

func (s *SQLStateStore) Put(ctx context.Context, id string, record *Record) error {
	row, err := rowFromRecord(record)
	if err != nil {
		return err
	}
	const stmt = `
INSERT INTO credential_records (id, kind, version, ciphertext, nonce, tag, metadata)
VALUES (:id, :kind, :version, :ciphertext, :nonce, :tag, :metadata)
ON CONFLICT (id) DO UPDATE SET
	kind = EXCLUDED.kind, version = EXCLUDED.version, ciphertext = EXCLUDED.ciphertext,
	nonce = EXCLUDED.nonce, tag = EXCLUDED.tag, metadata = EXCLUDED.metadata`
	if _, err := s.db.NamedExecContext(ctx, stmt, row); err != nil {
		return flowerrors.Internal("upsert credential record", err)
	}
	return nil
}

func (s *SQLStateStore) Get(ctx context.Context, id string) (*Record, error) {
	var row sqlRecordRow
	err := s.db.GetContext(ctx, &row, `SELECT id, kind, version, ciphertext, nonce, tag, metadata FROM credential_records WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, flowerrors.NotFound("credential", id)
	}
	if err != nil {
		return nil, flowerrors.Internal("query credential record", err)
	}
	return row.toRecord()
}

func (s *SQLStateStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credential_records WHERE id = $1`, id)
	if err != nil {
		return flowerrors.Internal("delete credential record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return flowerrors.Internal("read delete result", err)
	}
	if n == 0 {
		return flowerrors.NotFound("credential", id)
	}
	return nil
}

func (s *SQLStateStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var rows []sqlRecordRow
	query := `SELECT id, kind, version, ciphertext, nonce, tag, metadata FROM credential_records`
	var args []any
	if filter.Kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, filter.Kind)
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, flowerrors.Internal("list credential records", err)
	}
	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		if filter.matches(record) {
			out = append(out, record)
		}
	}
	return out, nil
}
