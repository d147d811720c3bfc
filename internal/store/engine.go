// Package store owns the persistent SQL history store: schema
// creation, forward migration, and the shellmem_rank scalar function
// that backs the ranking engine's context table.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/shellmem/shellmem/internal/shellmemerr"
	"github.com/shellmem/shellmem/internal/weights"
)

// Engine wraps the store's database handle. A process opens exactly
// one Engine for the lifetime of a single command invocation; there is
// no long-lived server holding it open across invocations.
type Engine struct {
	db   *sql.DB
	path string
}

// Seed populates a brand-new, empty database, e.g. by importing
// an existing shell history file. It runs after the schema is created
// but before the store is stamped at CurrentSchemaVersion, so any
// cmd_tpl computation the seed performs for itself doesn't also get
// redone by a migration.
type Seed func(db *sql.DB) error

// Open opens (creating if necessary) the store at path. ws supplies
// the scorer weights shellmem_rank reads at query time; the function is
// registered with the sqlite driver once per process and reads the
// weights of the most recently opened store. seed runs only
// when path does not yet exist.
func Open(path string, ws *weights.Store, seed Seed) (*Engine, error) {
	registerRankFunction(ws)

	isNew := true
	if _, err := os.Stat(path); err == nil {
		isNew = false
	} else if !os.IsNotExist(err) {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "stat store file "+path, err)
	}

	if isNew {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, shellmemerr.New(shellmemerr.KindEnvironment, "create store directory", err)
		}
	}

	dsn := fmt.Sprintf(
		"%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, shellmemerr.New(shellmemerr.KindStore, "open store", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, shellmemerr.New(shellmemerr.KindStore, "open store", err)
	}

	if isNew {
		if _, err := db.Exec(freshSchema); err != nil {
			db.Close()
			return nil, shellmemerr.New(shellmemerr.KindStore, "create schema", err)
		}
		if seed != nil {
			if err := seed(db); err != nil {
				db.Close()
				return nil, shellmemerr.New(shellmemerr.KindStore, "seed store", err)
			}
		}
		if err := firstTimeSetup(db); err != nil {
			db.Close()
			return nil, shellmemerr.New(shellmemerr.KindStore, "initialize schema version", err)
		}
	} else {
		if err := migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Engine{db: db, path: path}, nil
}

// DB returns the underlying connection pool for packages that build
// their own queries against it (context builder, ingestion, ranking).
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the store's file path.
func (e *Engine) Path() string { return e.path }

// Close checkpoints the write-ahead log and closes the connection
// pool.
func (e *Engine) Close() error {
	_, _ = e.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return e.db.Close()
}
