package kv

import (
	"context"
	"database/sql"
	"errors"

	"zerolag/internal/db"
	"zerolag/internal/migrate"
)

// SQLite stores records in the migrated "records" table. Insertion order is the
// autoincrement seq, which an upsert leaves untouched.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens and migrates the database described by cfg.
func OpenSQLite(ctx context.Context, cfg db.Config) (*SQLite, error) {
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, storageErr("open", err)
	}
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, storageErr("migrate", err)
	}
	return &SQLite{DB: conn}, nil
}

func (s *SQLite) View(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *SQLite) Update(ctx context.Context, fn func(Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *SQLite) run(ctx context.Context, writable bool, fn func(Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()
	if err := fn(&sqliteTx{ctx: ctx, tx: tx, writable: writable}); err != nil {
		return err
	}
	if !writable {
		return nil
	}
	return storageErr("commit", tx.Commit())
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

type sqliteTx struct {
	ctx      context.Context
	tx       *sql.Tx
	writable bool
}

func (t *sqliteTx) Get(bucket, key string) ([]byte, error) {
	var v []byte
	err := t.tx.QueryRowContext(t.ctx, `SELECT value FROM records WHERE bucket=? AND key=?`, bucket, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get", err)
	}
	return v, nil
}

func (t *sqliteTx) Put(bucket, key string, value []byte) error {
	if !t.writable {
		return storageErr("put", errors.New("read-only transaction"))
	}
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO records(bucket,key,value) VALUES (?,?,?)
ON CONFLICT(bucket,key) DO UPDATE SET value=excluded.value`, bucket, key, value)
	return storageErr("put", err)
}

func (t *sqliteTx) Delete(bucket, key string) error {
	if !t.writable {
		return storageErr("delete", errors.New("read-only transaction"))
	}
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM records WHERE bucket=? AND key=?`, bucket, key)
	return storageErr("delete", err)
}

func (t *sqliteTx) List(bucket string) ([][]byte, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT value FROM records WHERE bucket=? ORDER BY seq`, bucket)
	if err != nil {
		return nil, storageErr("list", err)
	}
	defer rows.Close()
	var res [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, storageErr("list", err)
		}
		res = append(res, v)
	}
	return res, storageErr("list", rows.Err())
}
