// File: internal/bootstrap/compile.go
// Brief: Compiler: manifest + install root into a resolved plan.

package bootstrap

import (
	"fmt"
	"path/filepath"
	"strings"
)

const defaultShell = "/bin/sh"

// Compile resolves a validated manifest against the install root.
func Compile(m *Manifest, root string) (*Plan, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("install root is required")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	shell := strings.TrimSpace(m.Defaults.Shell)
	if shell == "" {
		shell = defaultShell
	}

	steps := make([]*ResolvedStep, 0, len(m.Steps))
	byName := make(map[string]*ResolvedStep, len(m.Steps))
	for i, spec := range m.Steps {
		st := &ResolvedStep{
			Name:          strings.TrimSpace(spec.Name),
			Description:   strings.TrimSpace(spec.Description),
			Actions:       spec.Actions,
			Env:           spec.Env,
			Shell:         shell,
			manifestIndex: i,
		}
		for _, dep := range spec.Needs {
			dep = strings.TrimSpace(dep)
			if dep == st.Name {
				return nil, fmt.Errorf("step %q needs itself", st.Name)
			}
			st.Needs = append(st.Needs, dep)
		}
		// Omitted dir defaults to the step name under the root; an
		// explicitly empty dir opts the step out of the target
		// directory (and its clean-slate wipe) entirely.
		switch {
		case spec.Dir == nil:
			st.Dir = filepath.Join(absRoot, st.Name)
		case strings.TrimSpace(*spec.Dir) == "":
			st.Dir = ""
		case filepath.IsAbs(*spec.Dir):
			st.Dir = filepath.Clean(strings.TrimSpace(*spec.Dir))
		default:
			st.Dir = filepath.Join(absRoot, strings.TrimSpace(*spec.Dir))
		}
		if len(m.Defaults.Env) > 0 {
			st.BaseEnv = make(map[string]string, len(m.Defaults.Env))
			for k, v := range m.Defaults.Env {
				st.BaseEnv[k] = v
			}
		}
		steps = append(steps, st)
		byName[st.Name] = st
	}

	p := &Plan{
		Root:         absRoot,
		ManifestName: strings.TrimSpace(m.Name),
		Steps:        steps,
		ByName:       byName,
	}
	if err := assignWaves(p); err != nil {
		return nil, err
	}
	order, err := executionOrder(p)
	if err != nil {
		return nil, err
	}
	p.Order = order
	return p, nil
}

// Reindex rebuilds ByName, waves, and Order after mutating Steps.
func (p *Plan) Reindex() error {
	p.ByName = make(map[string]*ResolvedStep, len(p.Steps))
	for _, st := range p.Steps {
		p.ByName[st.Name] = st
	}
	if err := assignWaves(p); err != nil {
		return err
	}
	order, err := executionOrder(p)
	if err != nil {
		return err
	}
	p.Order = order
	return nil
}
