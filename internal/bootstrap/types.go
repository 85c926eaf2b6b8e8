// File: internal/bootstrap/types.go
// Brief: Manifest and resolved plan types.

package bootstrap

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type APIVersionKind struct {
	APIVersion string `yaml:"apiVersion,omitempty" json:"apiVersion,omitempty"`
	Kind       string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

// Defaults apply to every step unless overridden per action.
type Defaults struct {
	Shell string            `yaml:"shell,omitempty" json:"shell,omitempty"`
	Env   map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

type Manifest struct {
	APIVersionKind `yaml:",inline" json:",inline"`

	Name     string     `yaml:"name,omitempty" json:"name,omitempty"`
	Defaults Defaults   `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Steps    []StepSpec `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// StepSpec is one named installation unit. Dir is the step's target
// directory, wiped and recreated before its actions run (clean-slate
// reinstall). Omitted it defaults to the step name under the install
// root; explicitly empty (`dir: ""`) the step has no target directory
// and nothing is wiped.
type StepSpec struct {
	Name        string       `yaml:"name,omitempty" json:"name,omitempty"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Needs       []string     `yaml:"needs,omitempty" json:"needs,omitempty"`
	Dir         *string      `yaml:"dir,omitempty" json:"dir,omitempty"`
	Actions     []ActionSpec `yaml:"actions,omitempty" json:"actions,omitempty"`
	Env         []EnvExport  `yaml:"env,omitempty" json:"env,omitempty"`
}

// ActionSpec carries exactly one action kind.
type ActionSpec struct {
	Run   *RunAction   `yaml:"run,omitempty" json:"run,omitempty"`
	Fetch *FetchAction `yaml:"fetch,omitempty" json:"fetch,omitempty"`
}

// Duration accepts Go duration strings ("45m", "2h") in manifests.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		var n int64
		if err2 := value.Decode(&n); err2 == nil {
			*d = Duration(time.Duration(n))
			return nil
		}
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		parsed, err := time.ParseDuration(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n))
	return nil
}

type RunAction struct {
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Shell   bool              `yaml:"shell,omitempty" json:"shell,omitempty"`
	WorkDir string            `yaml:"workDir,omitempty" json:"workDir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Timeout *Duration         `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// UnmarshalYAML accepts either the structured form or a plain command
// string:
//
//	run: make install
//	run:
//	  command: ./configure --prefix=$MDSS_ROOT
//	  shell: true
func (r *RunAction) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var cmd string
		if err := value.Decode(&cmd); err != nil {
			return err
		}
		r.Command = cmd
		return nil
	}
	type plain RunAction
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = RunAction(p)
	return nil
}

type FetchAction struct {
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
	SHA256    string `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Dest      string `yaml:"dest,omitempty" json:"dest,omitempty"`
	ExtractTo string `yaml:"extractTo,omitempty" json:"extractTo,omitempty"`
	Retries   *int   `yaml:"retries,omitempty" json:"retries,omitempty"`
}

// EnvExport becomes an `export NAME="VALUE"` line appended to the
// profile file after the owning step succeeds.
type EnvExport struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// ResolvedStep is a StepSpec after compilation: directories anchored at
// the install root, defaults folded in, wave assigned.
type ResolvedStep struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Needs       []string     `json:"needs,omitempty"`
	Dir         string       `json:"dir,omitempty"`
	Actions     []ActionSpec `json:"actions"`
	Env         []EnvExport  `json:"env,omitempty"`

	Shell   string            `json:"shell,omitempty"`
	BaseEnv map[string]string `json:"baseEnv,omitempty"`

	// Wave is the topological depth; steps in the same wave are
	// mutually independent. Execution is still strictly sequential.
	Wave int `json:"wave"`

	manifestIndex int
}

func (s *ResolvedStep) String() string {
	return fmt.Sprintf("step %s (wave %d)", s.Name, s.Wave)
}

// Plan is a compiled, validated manifest with a total execution order.
type Plan struct {
	Root         string                   `json:"root"`
	ManifestName string                   `json:"manifestName,omitempty"`
	Steps        []*ResolvedStep          `json:"steps"`
	ByName       map[string]*ResolvedStep `json:"-"`

	// Order lists step names in execution order: topological, stable
	// by manifest declaration within a wave.
	Order []string `json:"order"`
}
