package store

import (
	"database/sql"
	"fmt"

	"github.com/shellmem/shellmem/internal/shellmemerr"
	"github.com/shellmem/shellmem/internal/template"
)

// firstTimeSetup stamps a freshly-created store as already being at
// CurrentSchemaVersion, skipping the incremental migrations that only
// exist to carry an older store forward.
func firstTimeSetup(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionsDDL); err != nil {
		return fmt.Errorf("create schema_versions table: %w", err)
	}
	return writeSchemaVersion(db, CurrentSchemaVersion)
}

// migrate brings an existing store up to CurrentSchemaVersion,
// refusing to proceed if it's already newer than this build supports.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaVersionsDDL); err != nil {
		return fmt.Errorf("create schema_versions table: %w", err)
	}

	var current int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if current > CurrentSchemaVersion {
		return shellmemerr.New(shellmemerr.KindStore, "open store", shellmemerr.ErrSchemaTooNew)
	}
	if current == CurrentSchemaVersion {
		return nil
	}

	if current < 1 {
		if err := migrateAddCmdTpl(db); err != nil {
			return err
		}
	}
	if current < 2 {
		if err := migrateAddSessionID(db); err != nil {
			return err
		}
	}

	return writeSchemaVersion(db, CurrentSchemaVersion)
}

// migrateAddCmdTpl adds the template column to a pre-template store and
// backfills it from each row's cmd, mirroring the original migration's
// "ALTER then UPDATE per row" approach rather than a single SQL
// expression, since the template algorithm isn't expressible in SQL.
func migrateAddCmdTpl(db *sql.DB) error {
	if _, err := db.Exec(`ALTER TABLE commands ADD COLUMN cmd_tpl TEXT`); err != nil {
		return fmt.Errorf("add cmd_tpl column: %w", err)
	}
	if _, err := db.Exec(`UPDATE commands SET cmd_tpl = ''`); err != nil {
		return fmt.Errorf("initialize cmd_tpl: %w", err)
	}

	rows, err := db.Query(`SELECT id, cmd FROM commands ORDER BY id DESC`)
	if err != nil {
		return fmt.Errorf("select commands for backfill: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id  int64
		tpl string
	}
	var backfill []pending
	for rows.Next() {
		var id int64
		var cmd string
		if err := rows.Scan(&id, &cmd); err != nil {
			return fmt.Errorf("scan command row for backfill: %w", err)
		}
		backfill = append(backfill, pending{id: id, tpl: template.Normalize(cmd, true)})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate commands for backfill: %w", err)
	}

	stmt, err := db.Prepare(`UPDATE commands SET cmd_tpl = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare cmd_tpl backfill: %w", err)
	}
	defer stmt.Close()

	for _, p := range backfill {
		if _, err := stmt.Exec(p.tpl, p.id); err != nil {
			return fmt.Errorf("backfill cmd_tpl for id %d: %w", p.id, err)
		}
	}
	return nil
}

func migrateAddSessionID(db *sql.DB) error {
	if _, err := db.Exec(`ALTER TABLE commands ADD COLUMN session_id TEXT`); err != nil {
		return fmt.Errorf("add session_id column: %w", err)
	}
	if _, err := db.Exec(`UPDATE commands SET session_id = 'UNKNOWN'`); err != nil {
		return fmt.Errorf("default session_id: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX command_session_id ON commands (session_id)`); err != nil {
		return fmt.Errorf("index session_id: %w", err)
	}
	return nil
}

func writeSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`INSERT INTO schema_versions (version, when_run) VALUES (?, strftime('%s','now'))`, version)
	if err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}
