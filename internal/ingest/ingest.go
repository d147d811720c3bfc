// Package ingest implements the ingestion policy: which commands get
// recorded, how a UI selection is correlated back to the command that
// produced it, and default session identity.
package ingest

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shellmem/shellmem/internal/template"
)

// privateCommandMarker flags a command the user prefixed with a space,
// a shell convention for "don't record this".
const privateCommandMarker = ' '

// searchMarkerPrefix is the self-inserted comment marker the search UI
// writes into the shell's own history so a ctrl-r-style invocation of
// this tool is never re-ingested as a real command.
const searchMarkerPrefix = "#shellmem:"

// ignoredCommands are recorded nowhere: they're either navigational
// noise or the tool's own search entry point.
var ignoredCommands = map[string]struct{}{
	"pwd":             {},
	"ls":              {},
	"cd":              {},
	"cd ..":           {},
	"clear":           {},
	"history":         {},
	"shellmem search": {},
}

// DefaultSessionID generates a random session id for a shell hook that
// didn't supply one.
func DefaultSessionID() string {
	return uuid.NewString()
}

// Record is the normalized form of an add() call, ready to insert.
type Record struct {
	Cmd       string
	SessionID string
	Dir       string
	WhenRun   *int64
	ExitCode  *int32
	OldDir    string
}

// ShouldAdd applies the five reject rules from the ingestion policy.
// It needs the store to check rule 5 (duplicate of the most recent
// record globally).
func ShouldAdd(db *sql.DB, cmd string) (bool, error) {
	if cmd == "" {
		return false, nil
	}
	if cmd[0] == privateCommandMarker {
		return false, nil
	}
	if strings.HasPrefix(cmd, searchMarkerPrefix) {
		return false, nil
	}
	if _, ignored := ignoredCommands[cmd]; ignored {
		return false, nil
	}

	var last sql.NullString
	err := db.QueryRow(`SELECT cmd FROM commands ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read last command: %w", err)
	}
	return !(last.Valid && last.String == cmd), nil
}

// Add inserts rec, first resolving whether it corresponds to a pending
// UI selection. It does not call ShouldAdd; callers must do that
// first, since ShouldAdd's "no-op" case is not an error.
func Add(db *sql.DB, rec Record) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin add transaction: %w", err)
	}
	defer tx.Rollback()

	selected, err := determineIfSelectedFromUI(tx, rec.Cmd, rec.SessionID, rec.Dir)
	if err != nil {
		return err
	}

	cmdTpl := template.Normalize(rec.Cmd, true)

	_, err = tx.Exec(
		`INSERT INTO commands (cmd, cmd_tpl, session_id, when_run, exit_code, selected, dir, old_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Cmd, cmdTpl, rec.SessionID, rec.WhenRun, rec.ExitCode, boolToInt(selected), rec.Dir, nullableString(rec.OldDir),
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}

	return tx.Commit()
}

// determineIfSelectedFromUI deletes the selected_commands row matching
// (cmd, session_id, dir), if any, reporting whether one existed, then
// sweeps any other pending rows for the session since they must have
// been aborted or edited before being run.
func determineIfSelectedFromUI(tx *sql.Tx, cmd, sessionID, dir string) (bool, error) {
	res, err := tx.Exec(
		`DELETE FROM selected_commands WHERE cmd = ? AND session_id = ? AND dir = ?`,
		cmd, sessionID, dir,
	)
	if err != nil {
		return false, fmt.Errorf("resolve selection: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve selection: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM selected_commands WHERE session_id = ?`, sessionID); err != nil {
		return false, fmt.Errorf("sweep stale selections: %w", err)
	}

	return affected > 0, nil
}

// RecordSelectedFromUI marks cmd as the pending selection for a
// session/dir pair; Add marks the next recorded command selected only if
// it is that exact command in that session and dir. Any Add for the
// session discards the pending row either way.
func RecordSelectedFromUI(db *sql.DB, cmd, sessionID, dir string) error {
	_, err := db.Exec(
		`INSERT INTO selected_commands (cmd, session_id, dir) VALUES (?, ?, ?)`,
		cmd, sessionID, dir,
	)
	if err != nil {
		return fmt.Errorf("record selection: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
