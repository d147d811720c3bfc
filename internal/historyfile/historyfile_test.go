package historyfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shellmem/shellmem/internal/shellmemerr"
)

func TestBashReaderSkipsTimestampCommentsAndBlankLines(t *testing.T) {
	in := "ls -la\n#1700000000\ngit status\n\ncd ..\n"
	records, err := BashReader{}.ReadAll(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Record{
		{Cmd: "ls -la"},
		{Cmd: "git status", WhenRun: 1700000000},
		{Cmd: "cd .."},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(records), len(want), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestBashReaderIgnoresMalformedTimestampLikeComments(t *testing.T) {
	in := "#not-a-timestamp\nls\n"
	records, err := BashReader{}.ReadAll(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (comment line is not a valid timestamp, kept as a command): %+v", len(records), records)
	}
}

func TestZshExtendedReaderParsesTimestampAndDuration(t *testing.T) {
	in := ": 1700000000:0;git status\n: 1700000005:3;ls -la\n"
	records, err := ZshExtendedReader{}.ReadAll(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Record{
		{Cmd: "git status", WhenRun: 1700000000},
		{Cmd: "ls -la", WhenRun: 1700000005},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestZshExtendedReaderFallsBackToPlainLine(t *testing.T) {
	records, err := ZshExtendedReader{}.ReadAll(strings.NewReader("echo hi\n"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 || records[0].Cmd != "echo hi" || records[0].WhenRun != 0 {
		t.Fatalf("got %+v", records)
	}
}

func TestFishReaderReturnsUnsupported(t *testing.T) {
	_, err := FishReader{}.ReadAll(strings.NewReader(""))
	if !errors.Is(err, shellmemerr.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func writeHistoryFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenDetectsBashFormatByDefault(t *testing.T) {
	path := writeHistoryFile(t, ".bash_history", "ls -la\n#1700000000\ngit status\n")
	records, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(records) != 2 || records[1].Cmd != "git status" || records[1].WhenRun != 1700000000 {
		t.Fatalf("got %+v", records)
	}
}

func TestOpenDetectsZshExtendedFormatByContent(t *testing.T) {
	path := writeHistoryFile(t, ".zsh_history", ": 1700000000:0;git status\n: 1700000005:3;ls -la\n")
	records, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	want := []Record{
		{Cmd: "git status", WhenRun: 1700000000},
		{Cmd: "ls -la", WhenRun: 1700000005},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d: %+v", len(records), len(want), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, records[i], want[i])
		}
	}
}

func TestOpenDetectsFishByFilename(t *testing.T) {
	path := writeHistoryFile(t, "fish_history", "- cmd: ls\n  when: 1700000000\n")
	_, err := Open(path)
	if !errors.Is(err, shellmemerr.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat for fish_history, got %v", err)
	}
}

func TestOpenMissingFileIsEnvironmentFault(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected an error for a missing history file")
	}
}
