// Package rankctx builds the "contextual_commands" temporary table the
// ranking engine queries against: one row per distinct command in a
// time window, annotated with the ten ranking factors and the scorer's
// rank for the current directory and recent command sequence.
package rankctx

import (
	"database/sql"
	"fmt"
	"time"
)

const lookback = 3

// Build (re)creates the temp.contextual_commands table for the given
// directory and session. start/end bound which commands.when_run rows
// are considered; now is the reference time for the recent-failure
// factor. A zero time.Time for end or now means "use the current time".
func Build(db *sql.DB, dir string, sessionID *string, start, end, now time.Time) error {
	lastCommands, err := contextCommands(db, sessionID)
	if err != nil {
		return fmt.Errorf("resolve recent command templates: %w", err)
	}

	if _, err := db.Exec(`DROP TABLE IF EXISTS temp.contextual_commands`); err != nil {
		return fmt.Errorf("drop stale contextual_commands: %w", err)
	}

	var whenRunMin, whenRunMax sql.NullFloat64
	if err := db.QueryRow(`SELECT MIN(when_run), MAX(when_run) FROM commands`).Scan(&whenRunMin, &whenRunMax); err != nil {
		return fmt.Errorf("read when_run bounds: %w", err)
	}
	minV, maxV := whenRunMin.Float64, whenRunMax.Float64
	if minV == maxV {
		// A brand-new or single-command store has no age range to work
		// with; manufacture a one-hour window so age_factor doesn't
		// divide by zero.
		minV -= 3600
	}

	maxOccurrences := queryFloatOr(db,
		`SELECT COUNT(*) AS c FROM commands GROUP BY cmd ORDER BY c DESC LIMIT 1`, 1.0)
	maxSelectedOccurrences := queryFloatOr(db,
		`SELECT COUNT(*) AS c FROM commands WHERE selected = 1 GROUP BY cmd ORDER BY c DESC LIMIT 1`, 1.0)
	maxLength := queryFloatOr(db,
		`SELECT MAX(LENGTH(cmd)) FROM commands`, 100.0)

	startEpoch := int64(0)
	if !start.IsZero() {
		startEpoch = start.Unix()
	}
	endEpoch := nowOrDefault(end)
	nowEpoch := nowOrDefault(now)

	stmt := `
CREATE TEMP TABLE contextual_commands AS SELECT
	id, cmd, cmd_tpl, session_id, when_run, exit_code, selected, dir,

	LENGTH(c.cmd) / :max_length AS length_factor,
	MIN((:when_run_max - when_run) / :history_duration) AS age_factor,
	SUM(CASE WHEN exit_code = 0 THEN 1.0 ELSE 0.0 END) / COUNT(*) AS exit_factor,
	MAX(CASE WHEN exit_code != 0 AND :now - when_run < 120 THEN 1.0 ELSE 0.0 END) AS recent_failure_factor,
	SUM(CASE WHEN dir = :directory THEN 1.0 ELSE 0.0 END) / COUNT(*) AS dir_factor,
	SUM(CASE WHEN dir = :directory AND selected = 1 THEN 1.0 ELSE 0.0 END) / (SUM(CASE WHEN selected = 1 THEN 1.0 ELSE 0.0 END) + 1) AS selected_dir_factor,
	SUM((
		SELECT COUNT(DISTINCT c2.cmd_tpl) FROM commands c2
		WHERE c2.id >= c.id - :lookback AND c2.id < c.id AND c2.cmd_tpl IN (:last0, :last1, :last2)
	) / :lookback_f) / COUNT(*) AS overlap_factor,
	SUM((SELECT COUNT(*) FROM commands c2 WHERE c2.id = c.id - 1 AND c2.cmd_tpl = :last0)) / COUNT(*) AS immediate_overlap_factor,
	SUM(CASE WHEN selected = 1 THEN 1.0 ELSE 0.0 END) / :max_selected_occurrences AS selected_occurrences_factor,
	COUNT(*) / :max_occurrences AS occurrences_factor,

	shellmem_rank(
		MIN((:when_run_max - when_run) / :history_duration),
		LENGTH(c.cmd) / :max_length,
		SUM(CASE WHEN exit_code = 0 THEN 1.0 ELSE 0.0 END) / COUNT(*),
		MAX(CASE WHEN exit_code != 0 AND :now - when_run < 120 THEN 1.0 ELSE 0.0 END),
		SUM(CASE WHEN dir = :directory AND selected = 1 THEN 1.0 ELSE 0.0 END) / (SUM(CASE WHEN selected = 1 THEN 1.0 ELSE 0.0 END) + 1),
		SUM(CASE WHEN dir = :directory THEN 1.0 ELSE 0.0 END) / COUNT(*),
		SUM((
			SELECT COUNT(DISTINCT c2.cmd_tpl) FROM commands c2
			WHERE c2.id >= c.id - :lookback AND c2.id < c.id AND c2.cmd_tpl IN (:last0, :last1, :last2)
		) / :lookback_f) / COUNT(*),
		SUM((SELECT COUNT(*) FROM commands c2 WHERE c2.id = c.id - 1 AND c2.cmd_tpl = :last0)) / COUNT(*),
		SUM(CASE WHEN selected = 1 THEN 1.0 ELSE 0.0 END) / :max_selected_occurrences,
		COUNT(*) / :max_occurrences
	) AS rank

	FROM commands c WHERE when_run > :start_time AND when_run < :end_time GROUP BY cmd ORDER BY id DESC`

	_, err = db.Exec(stmt,
		sql.Named("when_run_max", maxV),
		sql.Named("history_duration", maxV-minV),
		sql.Named("directory", dir),
		sql.Named("max_occurrences", maxOccurrences),
		sql.Named("max_length", maxLength),
		sql.Named("max_selected_occurrences", maxSelectedOccurrences),
		sql.Named("lookback", lookback),
		sql.Named("lookback_f", float64(lookback)),
		sql.Named("last0", lastCommands[0]),
		sql.Named("last1", lastCommands[1]),
		sql.Named("last2", lastCommands[2]),
		sql.Named("start_time", startEpoch),
		sql.Named("end_time", endEpoch),
		sql.Named("now", nowEpoch),
	)
	if err != nil {
		return fmt.Errorf("create contextual_commands: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX temp.contextual_commands_id ON contextual_commands(id)`); err != nil {
		return fmt.Errorf("index contextual_commands: %w", err)
	}
	return nil
}

func nowOrDefault(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func queryFloatOr(db *sql.DB, query string, fallback float64) float64 {
	var v sql.NullFloat64
	if err := db.QueryRow(query).Scan(&v); err != nil || !v.Valid {
		return fallback
	}
	return v.Float64
}

// contextCommands resolves the three most recent command templates to
// use as the "last commands" overlap context. It prefers the current
// session's own history; if that session hasn't run three commands
// yet, it falls back to the three most recent commands from any
// session and pads with empty templates (which overlap nothing) rather
// than mixing the two sources.
func contextCommands(db *sql.DB, sessionID *string) ([3]string, error) {
	var result [3]string

	own, err := lastCommandTemplates(db, sessionID, lookback)
	if err != nil {
		return result, err
	}
	if len(own) >= lookback {
		copy(result[:], own)
		return result, nil
	}

	global, err := lastCommandTemplates(db, nil, lookback)
	if err != nil {
		return result, err
	}
	copy(result[:], global)
	return result, nil
}

func lastCommandTemplates(db *sql.DB, sessionID *string, limit int) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if sessionID == nil {
		rows, err = db.Query(`SELECT cmd_tpl FROM commands ORDER BY id DESC LIMIT ?`, limit)
	} else {
		rows, err = db.Query(`SELECT cmd_tpl FROM commands WHERE session_id = ? ORDER BY id DESC LIMIT ?`, *sessionID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent command templates: %w", err)
	}
	defer rows.Close()

	var templates []string
	for rows.Next() {
		var tpl sql.NullString
		if err := rows.Scan(&tpl); err != nil {
			return nil, fmt.Errorf("scan command template: %w", err)
		}
		templates = append(templates, tpl.String)
	}
	return templates, rows.Err()
}
