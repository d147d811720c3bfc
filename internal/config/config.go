// Package config resolves the process environment into a settings
// struct once at startup, resolving flags and environment into a
// single struct before constructing the engine rather than threading
// os.Getenv calls through the rest of the program.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/shellmem/shellmem/internal/shellmemerr"
)

const (
	envHistoryStaging = "SHELLMEM_HISTORY"
	envHistFile       = "HISTFILE"
	envHistFileAlt    = "SHELLMEM_HISTFILE"
	envSessionID      = "SHELLMEM_SESSION_ID"
	envConfigFile     = "SHELLMEM_CONFIG"
	envDBPath         = "SHELLMEM_DB_PATH"
	envWeightsPath    = "SHELLMEM_WEIGHTS_PATH"
)

// Config is the resolved set of inputs every other package needs. It is
// built once by Load and passed down explicitly rather than re-read from
// the environment deep in the call stack.
type Config struct {
	// HistoryStagingFile is the shell-provided "last command" file, used
	// only to discover the command that was just run.
	HistoryStagingFile string
	// HistFile is the user's shell-native history file, consulted on
	// first-run import and on delete propagation.
	HistFile string
	// SessionID is the opaque per-shell identifier; defaulted by the
	// caller (see ingest.DefaultSessionID) when absent here.
	SessionID string
	// Dir and OldDir default from PWD/OLDPWD.
	Dir    string
	OldDir string
	// DBPath is the SQL store location; empty means the caller should
	// fall back to the per-user default path.
	DBPath string
	// WeightsPath is an optional TOML scorer-weights override; empty
	// means compiled-in defaults only.
	WeightsPath string
}

// fileOverrides is the optional TOML config file shape. Every field is
// a plain string; unset fields leave Config's environment-derived value
// untouched.
type fileOverrides struct {
	DBPath      string `toml:"db_path"`
	WeightsPath string `toml:"weights_path"`
	HistFile    string `toml:"histfile"`
}

// Load reads environment variables (and, if SHELLMEM_CONFIG names a
// file, a TOML override layered underneath them) into a Config.
// Environment variables always win over the config file, matching the
// usual precedence of explicit env over on-disk defaults.
func Load(environ func(string) string) (Config, error) {
	if environ == nil {
		environ = os.Getenv
	}

	var fo fileOverrides
	if path := environ(envConfigFile); path != "" {
		if _, err := toml.DecodeFile(path, &fo); err != nil {
			return Config{}, shellmemerr.New(shellmemerr.KindEnvironment, "parse config file "+path, err)
		}
	}

	cfg := Config{
		HistoryStagingFile: environ(envHistoryStaging),
		HistFile:           firstNonEmpty(environ(envHistFileAlt), environ(envHistFile), fo.HistFile),
		SessionID:          environ(envSessionID),
		Dir:                environ("PWD"),
		OldDir:             environ("OLDPWD"),
		DBPath:             firstNonEmpty(environ(envDBPath), fo.DBPath),
		WeightsPath:        firstNonEmpty(environ(envWeightsPath), fo.WeightsPath),
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultDBPath returns "<home>/.shellmem/history.db", the store
// location used when DBPath was not set by environment or config file.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", shellmemerr.New(shellmemerr.KindEnvironment, "resolve home directory", err)
	}
	return filepath.Join(home, ".shellmem", "history.db"), nil
}

// ResolvedDBPath returns cfg.DBPath if set, else DefaultDBPath().
func ResolvedDBPath(cfg Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return DefaultDBPath()
}
