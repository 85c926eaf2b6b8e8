// File: internal/envfile/envfile.go
// Brief: Idempotent export-line management for the shell profile file.

// Package envfile appends `export NAME="VALUE"` lines to a shell
// profile so installed tools are reachable in future sessions. Lines
// already present verbatim are never appended twice.
package envfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pmezard/go-difflib/difflib"
)

// ExportLine renders a single shell export. Double quotes in the value
// are escaped; `$` is left alone so values may reference other vars
// (e.g. PATH extensions).
func ExportLine(name, value string) string {
	escaped := strings.ReplaceAll(value, `"`, `\"`)
	return fmt.Sprintf(`export %s="%s"`, name, escaped)
}

// Append writes the given lines to the profile at path, skipping any
// line that already exists verbatim. It returns how many lines were
// added. The file and its parent directory are created when missing.
func Append(path string, lines []string) (int, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return 0, err
	}
	existing, err := readLines(path)
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		present[strings.TrimSpace(l)] = struct{}{}
	}

	var missing []string
	for _, l := range lines {
		if _, ok := present[strings.TrimSpace(l)]; ok {
			continue
		}
		missing = append(missing, l)
		present[strings.TrimSpace(l)] = struct{}{}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var b strings.Builder
	if len(existing) > 0 && strings.TrimSpace(existing[len(existing)-1]) != "" {
		// Keep appended blocks visually separated.
		b.WriteString("\n")
	}
	for _, l := range missing {
		b.WriteString(l)
		b.WriteString("\n")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return 0, err
	}
	return len(missing), nil
}

// Diff returns a unified diff between the profile's current content
// and the content after an Append of the given lines. An empty string
// means the file is already up to date.
func Diff(path string, lines []string) (string, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	existing, err := readLines(path)
	if err != nil {
		return "", err
	}
	present := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		present[strings.TrimSpace(l)] = struct{}{}
	}
	after := append([]string(nil), existing...)
	for _, l := range lines {
		if _, ok := present[strings.TrimSpace(l)]; ok {
			continue
		}
		after = append(after, l)
		present[strings.TrimSpace(l)] = struct{}{}
	}
	if len(after) == len(existing) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        appendNewlines(existing),
		B:        appendNewlines(after),
		FromFile: path,
		ToFile:   path + " (updated)",
		Context:  3,
	})
}

func readLines(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	text := strings.TrimSuffix(string(raw), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func appendNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
