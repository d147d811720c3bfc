package store

// CurrentSchemaVersion is the schema version this build writes and
// expects. Opening a store whose schema_versions.version exceeds this
// is a forward-compatibility fault (ErrSchemaTooNew).
const CurrentSchemaVersion = 2

// freshSchema creates a store at CurrentSchemaVersion directly — used
// only when bootstrapping a brand-new database file, so a fresh store
// never runs the incremental migrations a pre-existing one would.
const freshSchema = `
CREATE TABLE commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cmd TEXT NOT NULL,
	cmd_tpl TEXT,
	session_id TEXT NOT NULL,
	when_run INTEGER NOT NULL,
	exit_code INTEGER NOT NULL,
	selected INTEGER NOT NULL,
	dir TEXT,
	old_dir TEXT
);
CREATE INDEX command_cmds ON commands (cmd);
CREATE INDEX command_session_id ON commands (session_id);
CREATE INDEX command_dirs ON commands (dir);

CREATE TABLE selected_commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cmd TEXT NOT NULL,
	session_id TEXT NOT NULL,
	dir TEXT NOT NULL
);
CREATE INDEX selected_command_session_cmds ON selected_commands (session_id, cmd);
`

const schemaVersionsDDL = `
CREATE TABLE IF NOT EXISTS schema_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	version INTEGER NOT NULL,
	when_run INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS schema_versions_index ON schema_versions (version);
`
