// File: internal/bootstrap/manifest.go
// Brief: Manifest loading and validation.

package bootstrap

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	manifestKind       = "Bootstrap"
	manifestAPIVersion = "mdssboot.dev/v1"
)

//go:embed resources/bootstrap.yaml
var embeddedManifest []byte

//go:embed resources/quickstart.md
var embeddedQuickstart string

var stepNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := parseManifest(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// DefaultManifest returns the embedded stack manifest (system packages
// through ADflow). It is used when the install root carries no
// bootstrap.yaml of its own.
func DefaultManifest() (*Manifest, error) {
	m, err := parseManifest(embeddedManifest)
	if err != nil {
		return nil, fmt.Errorf("embedded manifest: %w", err)
	}
	return m, nil
}

// DefaultManifestBytes returns the raw embedded manifest, for `init`.
func DefaultManifestBytes() []byte {
	return append([]byte(nil), embeddedManifest...)
}

// Quickstart returns the embedded quickstart document.
func Quickstart() string {
	return embeddedQuickstart
}

func parseManifest(raw []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, err
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func validateManifest(m *Manifest) error {
	if k := strings.TrimSpace(m.Kind); k != "" && k != manifestKind {
		return fmt.Errorf("unsupported kind %q (expected %s)", m.Kind, manifestKind)
	}
	if v := strings.TrimSpace(m.APIVersion); v != "" && v != manifestAPIVersion {
		return fmt.Errorf("unsupported apiVersion %q (expected %s)", m.APIVersion, manifestAPIVersion)
	}
	if len(m.Steps) == 0 {
		return fmt.Errorf("manifest declares no steps")
	}

	seen := map[string]struct{}{}
	for i := range m.Steps {
		st := &m.Steps[i]
		name := strings.TrimSpace(st.Name)
		if name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if !stepNameRe.MatchString(name) {
			return fmt.Errorf("step %q: name must match %s", name, stepNameRe.String())
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate step name %q", name)
		}
		seen[name] = struct{}{}

		if len(st.Actions) == 0 && len(st.Env) == 0 {
			return fmt.Errorf("step %q: at least one action or env export is required", name)
		}
		for j, a := range st.Actions {
			if err := validateAction(a); err != nil {
				return fmt.Errorf("step %q actions[%d]: %w", name, j, err)
			}
		}
		for _, e := range st.Env {
			if strings.TrimSpace(e.Name) == "" {
				return fmt.Errorf("step %q: env export name is required", name)
			}
		}
	}

	for _, st := range m.Steps {
		for _, dep := range st.Needs {
			if _, ok := seen[strings.TrimSpace(dep)]; !ok {
				return fmt.Errorf("step %q needs unknown step %q", st.Name, dep)
			}
		}
	}
	return nil
}

func validateAction(a ActionSpec) error {
	set := 0
	if a.Run != nil {
		set++
		if strings.TrimSpace(a.Run.Command) == "" {
			return fmt.Errorf("run.command is required")
		}
		if a.Run.Timeout != nil && *a.Run.Timeout <= 0 {
			return fmt.Errorf("run.timeout must be > 0")
		}
	}
	if a.Fetch != nil {
		set++
		if strings.TrimSpace(a.Fetch.URL) == "" {
			return fmt.Errorf("fetch.url is required")
		}
	}
	switch set {
	case 0:
		return fmt.Errorf("one of run or fetch is required")
	case 1:
		return nil
	default:
		return fmt.Errorf("run and fetch are mutually exclusive")
	}
}
