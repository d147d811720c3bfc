package ranking

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shellmem/shellmem/internal/rankctx"
	"github.com/shellmem/shellmem/internal/store"
	"github.com/shellmem/shellmem/internal/weights"
)

func openTestStore(t *testing.T) *store.Engine {
	t.Helper()
	ws, err := weights.NewStore(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("weights.NewStore: %v", err)
	}
	e, err := store.Open(filepath.Join(t.TempDir(), "history.db"), ws, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func insertCommand(t *testing.T, db *sql.DB, cmd, tpl, session, dir string, whenRun int64, exitCode, selected int) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO commands (cmd, cmd_tpl, session_id, when_run, exit_code, selected, dir) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cmd, tpl, session, whenRun, exitCode, selected, dir,
	)
	if err != nil {
		t.Fatalf("insert command: %v", err)
	}
}

func buildContext(t *testing.T, db *sql.DB, dir, session string) {
	t.Helper()
	sid := session
	if err := rankctx.Build(db, dir, &sid, time.Time{}, time.Time{}, time.Unix(1000, 0)); err != nil {
		t.Fatalf("rankctx.Build: %v", err)
	}
}

func TestFindMatchesEmptyQueryReturnsTopByRank(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "deploy.sh", "deploy.sh", "s1", "/proj", 100, 0, 1)
	insertCommand(t, db, "ls", "ls", "s1", "/proj", 100, 0, 0)
	buildContext(t, db, "/proj", "s1")

	matches, err := FindMatches(db, "", 10, 0)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Cmd != "deploy.sh" {
		t.Errorf("top match = %q, want deploy.sh", matches[0].Cmd)
	}
}

func TestFindMatchesSubstringFiltersWithoutFuzzy(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "git status", "git status", "s1", "/proj", 100, 0, 0)
	insertCommand(t, db, "git commit", "git commit", "s1", "/proj", 100, 0, 0)
	insertCommand(t, db, "ls -la", "ls -la", "s1", "/proj", 100, 0, 0)
	buildContext(t, db, "/proj", "s1")

	matches, err := FindMatches(db, "git", 10, 0)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Cmd == "ls -la" {
			t.Error("substring filter let through a non-matching command")
		}
	}
}

func TestFindMatchesFuzzyFindsNonContiguousSubsequence(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "git commit -m wip", "git commit -m wip", "s1", "/proj", 100, 0, 0)
	insertCommand(t, db, "ls -la", "ls -la", "s1", "/proj", 100, 0, 0)
	buildContext(t, db, "/proj", "s1")

	matches, err := FindMatches(db, "gcm", 10, 0.8)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("expected at least one fuzzy match")
	}
	if matches[0].Cmd != "git commit -m wip" {
		t.Errorf("top fuzzy match = %q, want %q", matches[0].Cmd, "git commit -m wip")
	}
}

func TestFindMatchesRespectsLimit(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	for i, cmd := range []string{"a1", "a2", "a3", "a4"} {
		insertCommand(t, db, cmd, cmd, "s1", "/proj", int64(100+i), 0, 0)
	}
	buildContext(t, db, "/proj", "s1")

	matches, err := FindMatches(db, "", 2, 0)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
}

func TestDeleteCommandRemovesFromBothTables(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "rm -rf /tmp/x", "rm -rf /tmp/x", "s1", "/proj", 100, 0, 0)
	if err := insertSelected(db, "rm -rf /tmp/x", "s1", "/proj"); err != nil {
		t.Fatalf("insert selected: %v", err)
	}

	if err := DeleteCommand(db, "rm -rf /tmp/x"); err != nil {
		t.Fatalf("DeleteCommand: %v", err)
	}

	var commandCount, selectedCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM commands WHERE cmd = ?`, "rm -rf /tmp/x").Scan(&commandCount); err != nil {
		t.Fatalf("count commands: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM selected_commands WHERE cmd = ?`, "rm -rf /tmp/x").Scan(&selectedCount); err != nil {
		t.Fatalf("count selected_commands: %v", err)
	}
	if commandCount != 0 || selectedCount != 0 {
		t.Errorf("DeleteCommand left rows behind: commands=%d selected_commands=%d", commandCount, selectedCount)
	}
}

func insertSelected(db *sql.DB, cmd, session, dir string) error {
	_, err := db.Exec(`INSERT INTO selected_commands (cmd, session_id, dir) VALUES (?, ?, ?)`, cmd, session, dir)
	return err
}

func TestMoveRewritesDirAndOldDirUnderPrefix(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "make", "make", "s1", "/old/proj/sub", 100, 0, 0)
	insertCommand(t, db, "ls", "ls", "s1", "/unrelated", 100, 0, 0)

	if err := Move(db, "/home/u", "/home/u", "/old/proj", "/new/proj"); err != nil {
		t.Fatalf("Move: %v", err)
	}

	var moved, untouched string
	if err := db.QueryRow(`SELECT dir FROM commands WHERE cmd = 'make'`).Scan(&moved); err != nil {
		t.Fatalf("read moved dir: %v", err)
	}
	if moved != "/new/proj/sub" {
		t.Errorf("moved dir = %q, want /new/proj/sub", moved)
	}
	if err := db.QueryRow(`SELECT dir FROM commands WHERE cmd = 'ls'`).Scan(&untouched); err != nil {
		t.Fatalf("read untouched dir: %v", err)
	}
	if untouched != "/unrelated" {
		t.Errorf("unrelated dir was rewritten to %q", untouched)
	}
}

func TestDumpOrdersByWhenRunAndRespectsRange(t *testing.T) {
	e := openTestStore(t)
	db := e.DB()

	insertCommand(t, db, "first", "first", "s1", "/proj", 100, 0, 0)
	insertCommand(t, db, "second", "second", "s1", "/proj", 200, 0, 0)
	insertCommand(t, db, "third", "third", "s1", "/proj", 300, 0, 0)

	rows, err := Dump(db, time.Unix(100, 0), time.Unix(300, 0), SortAscending)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(rows) != 1 || rows[0].Cmd != "second" {
		t.Fatalf("Dump(100,300) = %+v, want only 'second'", rows)
	}

	all, err := Dump(db, time.Time{}, time.Time{}, SortDescending)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(all) != 3 || all[0].Cmd != "third" {
		t.Fatalf("Dump unbounded descending = %+v, want third first", all)
	}
}
