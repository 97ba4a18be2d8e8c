package kvstore

import (
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/edumvp/backend/core"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteStore keeps each document as a row in a single kv table. It is the
// durable backend matching the rest of the platform's SQLite storage.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	if _, err = db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(key string, dst interface{}) error {
	var raw []byte
	err := s.db.Get(&raw, "SELECT value FROM kv WHERE key = ?", key)
	if err == sql.ErrNoRows {
		return ErrKeyNotFound
	}
	if err != nil {
		return unrecoverable(err, "reading "+key)
	}
	return json.Unmarshal(raw, dst)
}

func (s *SQLiteStore) Save(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encoding "+key)
	}
	_, err = s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, data,
	)
	if err != nil {
		return unrecoverable(err, "writing "+key)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return unrecoverable(err, "removing "+key)
	}
	return nil
}

// unrecoverable marks a database failure as shutdown-worthy. The database
// is embedded, so a broken connection cannot heal without a restart; the
// HTTP error handler turns these into a graceful shutdown.
func unrecoverable(err error, msg string) error {
	return errors.Wrap(core.NewShutdownError(err.Error()), msg)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
