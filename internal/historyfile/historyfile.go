// Package historyfile implements the external history-file reader
// contract: {cmd, when_run?} records pulled from a user's shell-native
// history, for first-run import and delete propagation. Readers return
// the whole file as one slice; records are not streamed lazily.
package historyfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shellmem/shellmem/internal/shellmemerr"
)

// Record is one parsed history line.
type Record struct {
	Cmd string
	// WhenRun is the unix timestamp the shell recorded for this command,
	// or zero if the format carries none.
	WhenRun int64
}

// Reader yields every record in a shell-native history file, in file
// order, skipping blank lines and format-specific metadata lines.
type Reader interface {
	ReadAll(r io.Reader) ([]Record, error)
}

var bashTimestampComment = regexp.MustCompile(`^#\d{10}$`)

// BashReader parses bash history and plain (non-extended) zsh history,
// which share a format: one command per line, with occasional
// "#<10 digits>" comment lines carrying a timestamp for the command
// that follows. Those comment lines are associated with the next
// command line; bare commands (no preceding comment) carry WhenRun 0.
type BashReader struct{}

func (BashReader) ReadAll(r io.Reader) ([]Record, error) {
	var (
		records []Record
		pending int64
		sc      = bufio.NewScanner(r)
	)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	for sc.Scan() {
		line := TrimCR(sc.Text())
		if line == "" {
			continue
		}
		if bashTimestampComment.MatchString(line) {
			ts, err := strconv.ParseInt(line[1:], 10, 64)
			if err == nil {
				pending = ts
			}
			continue
		}
		records = append(records, Record{Cmd: line, WhenRun: pending})
		pending = 0
	}
	if err := sc.Err(); err != nil {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "read bash history", err)
	}
	return records, nil
}

var zshExtendedLine = regexp.MustCompile(`^: (\d+):(\d+);(.*)$`)

// ZshExtendedReader parses zsh's EXTENDED_HISTORY format:
// ": <epoch>:<duration>;<cmd>" per entry. Lines that don't match the
// extended prefix are treated as plain commands with WhenRun 0, since
// zsh falls back to plain lines for some entries (e.g. ones written by
// other tools).
type ZshExtendedReader struct{}

func (ZshExtendedReader) ReadAll(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	for sc.Scan() {
		line := TrimCR(sc.Text())
		if line == "" {
			continue
		}
		m := zshExtendedLine.FindStringSubmatch(line)
		if m == nil {
			records = append(records, Record{Cmd: line})
			continue
		}
		when, _ := strconv.ParseInt(m[1], 10, 64)
		records = append(records, Record{Cmd: m[3], WhenRun: when})
	}
	if err := sc.Err(); err != nil {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "read zsh extended history", err)
	}
	return records, nil
}

// FishReader is a stub: fish's own history format (YAML-ish, its own
// escaping rules) is the embedding layer's responsibility to parse, not
// the core's.
type FishReader struct{}

func (FishReader) ReadAll(io.Reader) ([]Record, error) {
	return nil, shellmemerr.ErrUnsupportedFormat
}

// TrimCR strips a trailing carriage return some history files carry on
// Windows-edited copies; callers that feed lines from other sources can
// use it before handing a line to a Reader that expects clean input.
func TrimCR(line string) string {
	return strings.TrimSuffix(line, "\r")
}

// Open reads path's shell-native history, guessing which Reader matches
// its format, and returns the parsed records. This is the bootstrapping
// entry point: the store's first-run import doesn't know ahead of time
// whether HISTFILE is bash, plain zsh, or EXTENDED_HISTORY zsh.
func Open(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "open history file "+path, err)
	}
	defer f.Close()

	reader, err := detectReader(path, f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "rewind history file "+path, err)
	}
	return reader.ReadAll(f)
}

// detectReader picks a Reader by filename (fish's history file is
// conventionally named fish_history) or, failing that, by sniffing the
// first non-blank line for zsh's EXTENDED_HISTORY prefix. Everything
// else is treated as bash/plain-zsh, the common case.
func detectReader(path string, f *os.File) (Reader, error) {
	if strings.HasSuffix(filepath.Base(path), "fish_history") {
		return FishReader{}, nil
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := TrimCR(sc.Text())
		if line == "" {
			continue
		}
		if zshExtendedLine.MatchString(line) {
			return ZshExtendedReader{}, nil
		}
		break
	}
	if err := sc.Err(); err != nil {
		return nil, shellmemerr.New(shellmemerr.KindEnvironment, "sniff history file "+path, err)
	}
	return BashReader{}, nil
}
