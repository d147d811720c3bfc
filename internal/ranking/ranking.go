// Package ranking implements the matcher that queries the context
// builder's temp table, the transactional delete-command and
// directory-move operations, and the time-range dump query.
package ranking

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"github.com/shellmem/shellmem/internal/pathutil"
)

// Match is one ranked result row.
type Match struct {
	ID                  int64
	Cmd                 string
	CmdTpl              string
	SessionID           string
	WhenRun             sql.NullInt64
	ExitCode            sql.NullInt64
	Selected            bool
	Dir                 sql.NullString
	Rank                float64
	AgeFactor           float64
	LengthFactor        float64
	ExitFactor          float64
	RecentFailureFactor float64
	SelectedDirFactor   float64
	DirFactor           float64
	OverlapFactor       float64
	ImmediateOverlap    float64
	SelectedOccurrences float64
	OccurrencesFactor   float64
}

const matchColumns = `id, cmd, cmd_tpl, session_id, when_run, exit_code, selected, dir, rank,
	age_factor, length_factor, exit_factor, recent_failure_factor,
	selected_dir_factor, dir_factor, overlap_factor, immediate_overlap_factor,
	selected_occurrences_factor, occurrences_factor`

func scanMatch(rows *sql.Rows) (Match, error) {
	var m Match
	var selected int
	err := rows.Scan(
		&m.ID, &m.Cmd, &m.CmdTpl, &m.SessionID, &m.WhenRun, &m.ExitCode, &selected, &m.Dir, &m.Rank,
		&m.AgeFactor, &m.LengthFactor, &m.ExitFactor, &m.RecentFailureFactor,
		&m.SelectedDirFactor, &m.DirFactor, &m.OverlapFactor, &m.ImmediateOverlap,
		&m.SelectedOccurrences, &m.OccurrencesFactor,
	)
	m.Selected = selected != 0
	return m, err
}

// FindMatches queries temp.contextual_commands, which the caller must
// have already (re)built via rankctx.Build for the current directory
// and session. query == "" returns the top `limit` by rank alone. A
// non-empty query with fuzzy <= 0 keeps only rows whose cmd contains
// query (SQL LIKE). When fuzzy > 0 there is no substring filter: every
// row is kept only if query is an in-order grapheme subsequence of its
// cmd, and its fuzzy score is blended with rank, weighted by fuzzy (0..1).
func FindMatches(db *sql.DB, query string, limit int, fuzzy float64) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	if query == "" {
		return queryByRank(db, "%%", limit)
	}

	if fuzzy <= 0 {
		return queryByRank(db, "%"+query+"%", limit)
	}

	// Fuzzy mode: pull every row of the temp table (it holds one row per
	// distinct command in the active time window) without a substring
	// filter, drop rows that are not a subsequence match, and re-rank the
	// rest by the blended score.
	candidates, err := queryByRank(db, "%%", 0)
	if err != nil {
		return nil, err
	}

	type scored struct {
		m     Match
		blend float64
	}
	scoredRows := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		fs, ok := fuzzyScore(query, m.Cmd)
		if !ok {
			continue
		}
		weight := clamp01(fuzzy)
		blend := m.Rank*(1-weight) + fs*weight
		scoredRows = append(scoredRows, scored{m: m, blend: blend})
	}

	sort.SliceStable(scoredRows, func(i, j int) bool {
		if scoredRows[i].blend != scoredRows[j].blend {
			return scoredRows[i].blend > scoredRows[j].blend
		}
		return scoredRows[i].m.WhenRun.Int64 > scoredRows[j].m.WhenRun.Int64
	})

	if len(scoredRows) > limit {
		scoredRows = scoredRows[:limit]
	}
	out := make([]Match, len(scoredRows))
	for i, s := range scoredRows {
		out[i] = s.m
	}
	return out, nil
}

func queryByRank(db *sql.DB, likePattern string, limit int) ([]Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM contextual_commands WHERE cmd LIKE ? ORDER BY rank DESC`, matchColumns)
	args := []any{likePattern}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// fuzzyScore reports a [0,1] match quality for query as a (possibly
// non-contiguous, in-order) subsequence of candidate's grapheme
// clusters, and whether every character of query was found at all.
// Shorter candidates and earlier match positions score higher.
func fuzzyScore(query, candidate string) (float64, bool) {
	qClusters := graphemes(query)
	cClusters := graphemes(candidate)
	if len(qClusters) == 0 {
		return 1, true
	}

	qi := 0
	firstMatch := -1
	lastMatch := -1
	for ci, c := range cClusters {
		if qi < len(qClusters) && strings.EqualFold(c, qClusters[qi]) {
			if firstMatch < 0 {
				firstMatch = ci
			}
			lastMatch = ci
			qi++
		}
	}
	if qi < len(qClusters) {
		return 0, false
	}

	span := lastMatch - firstMatch + 1
	// Tighter spans and earlier starts score higher; longer candidates
	// dilute the score since a "needle in a haystack" match is weaker
	// evidence of intent than a near-exact short match.
	density := float64(len(qClusters)) / float64(span)
	earliness := 1 - float64(firstMatch)/float64(len(cClusters))
	brevity := float64(len(qClusters)) / float64(len(cClusters))

	return (density*0.5 + earliness*0.3 + brevity*0.2), true
}

func graphemes(s string) []string {
	var out []string
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		out = append(out, gr.Str())
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// DeleteCommand removes every commands and selected_commands row whose
// cmd equals the argument, transactionally.
func DeleteCommand(db *sql.DB, cmd string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM selected_commands WHERE cmd = ?`, cmd); err != nil {
		return fmt.Errorf("delete selected_commands: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM commands WHERE cmd = ?`, cmd); err != nil {
		return fmt.Errorf("delete commands: %w", err)
	}
	return tx.Commit()
}

// Move rewrites dir and old_dir for every row whose directory falls
// under oldDir, to the corresponding path under newDir. Both inputs
// are normalized before comparison so callers can pass raw,
// possibly-unclean paths.
func Move(db *sql.DB, home, cwd, oldDir, newDir string) error {
	oldNorm := pathutil.Normalize(oldDir, home, cwd)
	newNorm := pathutil.Normalize(newDir, home, cwd)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	if err := reparentColumn(tx, "dir", oldNorm, newNorm, home, cwd); err != nil {
		return err
	}
	if err := reparentColumn(tx, "old_dir", oldNorm, newNorm, home, cwd); err != nil {
		return err
	}

	return tx.Commit()
}

func reparentColumn(tx *sql.Tx, column, oldNorm, newNorm, home, cwd string) error {
	rows, err := tx.Query(fmt.Sprintf(`SELECT id, %s FROM commands WHERE %s IS NOT NULL`, column, column))
	if err != nil {
		return fmt.Errorf("select %s for move: %w", column, err)
	}

	type update struct {
		id    int64
		value string
	}
	var updates []update
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s for move: %w", column, err)
		}
		normalized := pathutil.Normalize(value, home, cwd)
		if pathutil.HasDirPrefix(normalized, oldNorm) {
			updates = append(updates, update{id: id, value: pathutil.Reparent(normalized, oldNorm, newNorm)})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	stmt, err := tx.Prepare(fmt.Sprintf(`UPDATE commands SET %s = ? WHERE id = ?`, column))
	if err != nil {
		return fmt.Errorf("prepare %s update: %w", column, err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.Exec(u.value, u.id); err != nil {
			return fmt.Errorf("update %s for id %d: %w", column, u.id, err)
		}
	}
	return nil
}

// SortOrder picks the direction Dump iterates commands in.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Dump returns every command with when_run in (since, before), ordered
// by when_run in the requested direction. A zero time for since or
// before means unbounded on that end.
func Dump(db *sql.DB, since, before time.Time, order SortOrder) ([]Match, error) {
	direction := "ASC"
	if order == SortDescending {
		direction = "DESC"
	}

	sinceEpoch := int64(0)
	if !since.IsZero() {
		sinceEpoch = since.Unix()
	}
	beforeEpoch := int64(1<<63 - 1)
	if !before.IsZero() {
		beforeEpoch = before.Unix()
	}

	query := fmt.Sprintf(
		`SELECT id, cmd, cmd_tpl, session_id, when_run, exit_code, selected, dir
		 FROM commands WHERE when_run > ? AND when_run < ? ORDER BY when_run %s`, direction)

	rows, err := db.Query(query, sinceEpoch, beforeEpoch)
	if err != nil {
		return nil, fmt.Errorf("dump commands: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var selected int
		if err := rows.Scan(&m.ID, &m.Cmd, &m.CmdTpl, &m.SessionID, &m.WhenRun, &m.ExitCode, &selected, &m.Dir); err != nil {
			return nil, fmt.Errorf("scan dump row: %w", err)
		}
		m.Selected = selected != 0
		out = append(out, m)
	}
	return out, rows.Err()
}
