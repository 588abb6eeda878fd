// Package cachestore is a SQLite-backed kernelcache.Persistence so that
// compiled program sources survive across process restarts (SPEC_FULL.md
// §4 "Program cache persistence"). It mirrors the teacher's database
// package's direct database/sql usage, but keyed and addressed for the
// cache's own purpose rather than open-ended query execution.
package cachestore

import (
	"database/sql"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"splax/internal/status"
)

// Store implements kernelcache.Persistence against a SQLite database.
// Rows are addressed by a blake2b-256 hash of the cache key rather than
// the key text itself, so arbitrarily long descriptor-key tuples never
// overflow an index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path and
// ensures its schema exists. The driver registered under driverName is
// chosen at compile time: modernc.org/sqlite (pure Go) by default, or
// mattn/go-sqlite3 (cgo) under the sqlite_cgo build tag — see
// driver_modernc.go / driver_cgo.go.
func Open(path string) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, status.Wrap(status.Error, path, err, "cachestore: open %q", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, status.Wrap(status.Error, path, err, "cachestore: ping %q", path)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS programs (
	key_hash      TEXT PRIMARY KEY,
	cache_key     TEXT NOT NULL,
	template_name TEXT NOT NULL,
	source        TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, status.Wrap(status.Error, path, err, "cachestore: migrate schema")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func hashKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Load returns the persisted source for key, if any (kernelcache.Persistence).
func (s *Store) Load(key string) (string, bool, error) {
	var source string
	err := s.db.QueryRow(`SELECT source FROM programs WHERE key_hash = ?`, hashKey(key)).Scan(&source)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, status.Wrap(status.Error, key, err, "cachestore: load %q", key)
	}
	return source, true, nil
}

// Store persists (or overwrites) the compiled source for key
// (kernelcache.Persistence).
func (s *Store) Store(key, templateName, source string) error {
	_, err := s.db.Exec(
		`INSERT INTO programs (key_hash, cache_key, template_name, source, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key_hash) DO UPDATE SET
			cache_key = excluded.cache_key,
			template_name = excluded.template_name,
			source = excluded.source,
			created_at = excluded.created_at`,
		hashKey(key), key, templateName, source, time.Now(),
	)
	if err != nil {
		return status.Wrap(status.Error, key, err, "cachestore: store %q", key)
	}
	return nil
}

// Stats reports how many program sources are currently persisted, for
// diagnostics.
func (s *Store) Stats() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM programs`).Scan(&n); err != nil {
		return 0, status.Wrap(status.Error, "", err, "cachestore: stats")
	}
	return n, nil
}

func init() {
	// Fail loudly and early if the build left driverName empty, rather
	// than failing later at the first sql.Open.
	if driverName == "" {
		panic("cachestore: no sqlite driver registered (driverName empty)")
	}
}
