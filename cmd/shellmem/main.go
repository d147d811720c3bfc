// shellmem - smarter shell history
// A shell history replacement that ranks suggestions by directory,
// recency, and exit status instead of only scanning backwards.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shellmem/shellmem/internal/config"
	"github.com/shellmem/shellmem/internal/historyfile"
	"github.com/shellmem/shellmem/internal/ingest"
	"github.com/shellmem/shellmem/internal/pathutil"
	"github.com/shellmem/shellmem/internal/rankctx"
	"github.com/shellmem/shellmem/internal/ranking"
	"github.com/shellmem/shellmem/internal/shellmemerr"
	"github.com/shellmem/shellmem/internal/store"
	"github.com/shellmem/shellmem/internal/template"
	"github.com/shellmem/shellmem/internal/weights"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `shellmem v%s - smarter shell history

Usage: shellmem <command> [options]

Commands:
  add      Record a command that just ran
  search   Print ranked matches for the current directory
  select   Record that a search result was chosen, before it re-runs
  move     Propagate a directory rename across recorded history
  dump     Print every recorded command in a time range

Environment Variables:
  SHELLMEM_DB_PATH        SQLite history file (default: ~/.shellmem/history.db)
  SHELLMEM_WEIGHTS_PATH   TOML file overriding the ranking weights
  SHELLMEM_SESSION_ID     Shell session identifier
  SHELLMEM_CONFIG         TOML config file filling gaps left by the environment

For more info: https://github.com/shellmem/shellmem
`, version)
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "add":
		err = runAdd(args)
	case "search":
		err = runSearch(args)
	case "select":
		err = runSelect(args)
	case "move":
		err = runMove(args)
	case "dump":
		err = runDump(args)
	case "-version", "--version", "version":
		fmt.Printf("shellmem v%s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openEngine loads config, starts the weight store, and opens the
// history database, all from environment plus an optional config
// file. Callers must Close the returned engine and weight store.
func openEngine() (*store.Engine, *weights.Store, config.Config, error) {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("load config: %w", err)
	}

	dbPath, err := config.ResolvedDBPath(cfg)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("resolve db path: %w", err)
	}

	ws, err := weights.NewStore(context.Background(), cfg.WeightsPath, func(err error) {
		fmt.Fprintf(os.Stderr, "shellmem: weights reload: %v\n", err)
	})
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("start weight store: %w", err)
	}

	e, err := store.Open(dbPath, ws, historySeed(cfg))
	if err != nil {
		ws.Close()
		return nil, nil, cfg, fmt.Errorf("open history store: %w", err)
	}
	return e, ws, cfg, nil
}

// historySeed builds the store.Seed that runs exactly once, when no
// store file exists yet: it imports cfg.HistFile through the matching
// historyfile.Reader, applies the same reject rules a live add() would,
// and inserts the survivors as spec.md's Bootstrapping rule requires
// (session_id "IMPORTED", when_run now(), exit_code 0, selected false).
func historySeed(cfg config.Config) store.Seed {
	return func(db *sql.DB) error {
		if cfg.HistFile == "" {
			return shellmemerr.New(shellmemerr.KindEnvironment, "import shell history", errors.New("HISTFILE is not set"))
		}

		records, err := historyfile.Open(cfg.HistFile)
		if err != nil {
			if errors.Is(err, shellmemerr.ErrUnsupportedFormat) {
				// Fish's own format is the embedding layer's to parse, not
				// ours; start with an empty store instead of failing open.
				return nil
			}
			return fmt.Errorf("read history file: %w", err)
		}

		now := time.Now().Unix()
		stmt, err := db.Prepare(
			`INSERT INTO commands (cmd, cmd_tpl, session_id, when_run, exit_code, selected) VALUES (?, ?, 'IMPORTED', ?, 0, 0)`,
		)
		if err != nil {
			return fmt.Errorf("prepare import insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			ok, err := ingest.ShouldAdd(db, rec.Cmd)
			if err != nil {
				return fmt.Errorf("check reject rules for imported command: %w", err)
			}
			if !ok {
				continue
			}
			tpl := template.Normalize(rec.Cmd, true)
			if _, err := stmt.Exec(rec.Cmd, tpl, now); err != nil {
				return fmt.Errorf("insert imported command: %w", err)
			}
		}
		return nil
	}
}

func sessionID(cfg config.Config) string {
	if cfg.SessionID != "" {
		return cfg.SessionID
	}
	return ingest.DefaultSessionID()
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	cmdStr := fs.String("command", "", "the command that ran")
	exitCode := fs.Int("exit", 0, "the command's exit status")
	oldDir := fs.String("old-dir", "", "the directory the shell was in before this command, if it changed it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cmdStr == "" {
		return fmt.Errorf("add: -command is required")
	}

	e, ws, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer ws.Close()
	defer e.Close()

	ok, err := ingest.ShouldAdd(e.DB(), *cmdStr)
	if err != nil {
		return fmt.Errorf("should add: %w", err)
	}
	if !ok {
		return nil
	}

	dir, err := pathutil.NormalizeEnv(".")
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	when := time.Now().Unix()
	code := int32(*exitCode)
	return ingest.Add(e.DB(), ingest.Record{
		Cmd:       *cmdStr,
		SessionID: sessionID(cfg),
		Dir:       dir,
		WhenRun:   &when,
		ExitCode:  &code,
		OldDir:    *oldDir,
	})
}

func runSelect(args []string) error {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	cmdStr := fs.String("command", "", "the command the user picked from search results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cmdStr == "" {
		return fmt.Errorf("select: -command is required")
	}

	e, ws, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer ws.Close()
	defer e.Close()

	dir, err := pathutil.NormalizeEnv(".")
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	return ingest.RecordSelectedFromUI(e.DB(), *cmdStr, sessionID(cfg), dir)
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "text to match against recorded commands")
	limit := fs.Int("limit", 10, "maximum results to print")
	fuzzy := fs.Float64("fuzzy", 0, "fuzzy-match weight in [0,1]; 0 means plain substring match")
	sessionOnly := fs.Bool("session-only", false, "take the last-three-command overlap context from the current session (candidates are not restricted to it)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, ws, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer ws.Close()
	defer e.Close()

	dir, err := pathutil.NormalizeEnv(".")
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	var sid *string
	if *sessionOnly {
		s := sessionID(cfg)
		sid = &s
	}

	if err := rankctx.Build(e.DB(), dir, sid, time.Time{}, time.Time{}, time.Time{}); err != nil {
		return fmt.Errorf("build ranking context: %w", err)
	}

	matches, err := ranking.FindMatches(e.DB(), *query, *limit, *fuzzy)
	if err != nil {
		return fmt.Errorf("find matches: %w", err)
	}
	for _, m := range matches {
		fmt.Printf("%.4f\t%s\n", m.Rank, m.Cmd)
	}
	return nil
}

func runMove(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	oldDir := fs.String("old-dir", "", "directory being renamed or moved")
	newDir := fs.String("new-dir", "", "its new location")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *oldDir == "" || *newDir == "" {
		return fmt.Errorf("move: -old-dir and -new-dir are required")
	}

	e, ws, _, err := openEngine()
	if err != nil {
		return err
	}
	defer ws.Close()
	defer e.Close()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	return ranking.Move(e.DB(), home, cwd, *oldDir, *newDir)
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	since := fs.Int64("since", 0, "only include commands after this unix timestamp")
	before := fs.Int64("before", 0, "only include commands before this unix timestamp")
	descending := fs.Bool("descending", false, "print most recent commands first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, ws, _, err := openEngine()
	if err != nil {
		return err
	}
	defer ws.Close()
	defer e.Close()

	order := ranking.SortAscending
	if *descending {
		order = ranking.SortDescending
	}

	rows, err := ranking.Dump(e.DB(), unixOrZero(*since), unixOrZero(*before), order)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	for _, r := range rows {
		fmt.Printf("%s\t%s\t%s\n", formatNullInt(r.WhenRun), strconv.Itoa(int(exitCodeOf(r.ExitCode))), r.Cmd)
	}
	return nil
}

func unixOrZero(epoch int64) time.Time {
	if epoch == 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}

func formatNullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return time.Unix(v.Int64, 0).Format(time.RFC3339)
}

func exitCodeOf(v sql.NullInt64) int64 {
	if !v.Valid {
		return -1
	}
	return v.Int64
}
