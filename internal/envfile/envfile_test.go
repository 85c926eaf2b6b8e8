package envfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportLine(t *testing.T) {
	cases := []struct {
		name, value, want string
	}{
		{"PETSC_DIR", "/opt/petsc", `export PETSC_DIR="/opt/petsc"`},
		{"PETSC_ARCH", "real-opt", `export PETSC_ARCH="real-opt"`},
		{"PATH", "$HOME/mdss-stack/bin:$PATH", `export PATH="$HOME/mdss-stack/bin:$PATH"`},
		{"MSG", `say "hi"`, `export MSG="say \"hi\""`},
	}
	for _, tc := range cases {
		if got := ExportLine(tc.name, tc.value); got != tc.want {
			t.Fatalf("ExportLine(%s)=%q want %q", tc.name, got, tc.want)
		}
	}
}

func TestAppendIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.sh")
	lines := []string{
		`export PETSC_DIR="/opt/petsc"`,
		`export PETSC_ARCH="real-opt"`,
	}

	added, err := Append(path, lines)
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if added != 2 {
		t.Fatalf("first append added %d lines, want 2", added)
	}

	added, err = Append(path, lines)
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if added != 0 {
		t.Fatalf("second append added %d lines, want 0", added)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	if got := strings.Count(string(raw), "PETSC_DIR"); got != 1 {
		t.Fatalf("PETSC_DIR appears %d times, want 1", got)
	}
}

func TestAppendOnlyMissingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.sh")
	if err := os.WriteFile(path, []byte("export PETSC_DIR=\"/opt/petsc\"\n"), 0o644); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	added, err := Append(path, []string{
		`export PETSC_DIR="/opt/petsc"`,
		`export PETSC_ARCH="real-opt"`,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if added != 1 {
		t.Fatalf("added %d lines, want 1", added)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), "PETSC_ARCH") {
		t.Fatalf("missing PETSC_ARCH line in profile:\n%s", raw)
	}
}

func TestDiffShowsPendingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.sh")
	out, err := Diff(path, []string{`export CGNS_HOME="/opt/cgns"`})
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, `+export CGNS_HOME="/opt/cgns"`) {
		t.Fatalf("diff should show the added export, got:\n%s", out)
	}
}

func TestDiffEmptyWhenUpToDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.sh")
	line := `export CGNS_HOME="/opt/cgns"`
	if _, err := Append(path, []string{line}); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, err := Diff(path, []string{line})
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty diff, got:\n%s", out)
	}
}
