package template

import "testing"

func TestNormalizeBasic(t *testing.T) {
	cases := []struct {
		name     string
		cmd      string
		truncate bool
		want     string
	}{
		{"plain", "ls -la", false, "ls -la"},
		{"no path no truncation needed", "rake db:test:prepare", false, "rake db:test:prepare"},
		{"single quoted arg", "git ci -m 'my commit message'", false, "git ci -m QUOTED"},
		{"double quoted arg", `git ci -m "my commit message"`, false, "git ci -m QUOTED"},
		{"path argument", "cd /tmp/foo", false, "cd PATH"},
		{"path argument truncated", "cd /tmp/foo", true, "cd PATH"},
		{"colon separated paths", "command path/1/2/3:/foo/bar", false, "command PATH:PATH"},
		{"truncate to two tokens", "git ci -m 'my commit message'", true, "git ci"},
		{"first token never becomes PATH", "/usr/bin/env bash", false, "/usr/bin/env bash"},
		{"second token with slash becomes PATH", "echo /usr/bin/env", false, "echo PATH"},
		{"empty", "", false, ""},
		{"trailing backslash never fails", `echo foo\`, false, "echo foo"},
		{"unbalanced quote never fails", `echo "foo`, false, "echo "},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Normalize(c.cmd, c.truncate)
			if got != c.want {
				t.Errorf("Normalize(%q, %v) = %q, want %q", c.cmd, c.truncate, got, c.want)
			}
		})
	}
}

func TestNormalizeTruncateStopsAtSecondToken(t *testing.T) {
	got := Normalize("cd ..", true)
	if got != "cd .." {
		t.Errorf("Normalize(%q, true) = %q, want %q", "cd ..", got, "cd ..")
	}
}

func TestNormalizeTruncateNeverProducesMoreThanOneSpace(t *testing.T) {
	got := Normalize("docker compose up -d --build", true)
	if got != "docker compose" {
		t.Errorf("got %q, want %q", got, "docker compose")
	}
}

func TestNormalizeIdempotentOnAlreadyNormalized(t *testing.T) {
	got := Normalize("cd PATH", false)
	if got != "cd PATH" {
		t.Errorf("got %q, want %q", got, "cd PATH")
	}
}
