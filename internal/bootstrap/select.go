// File: internal/bootstrap/select.go
// Brief: Step selection (--only pulls dependencies, --skip drops dependents).

package bootstrap

import (
	"fmt"
	"sort"
	"strings"
)

// Select narrows a plan. Only keeps the named steps plus their
// transitive dependencies; Skip removes the named steps plus every step
// that transitively depends on them. Skip wins over Only. The returned
// plan shares step pointers with the input.
func Select(p *Plan, only, skip []string) (*Plan, []string, error) {
	for _, name := range append(append([]string(nil), only...), skip...) {
		if _, ok := p.ByName[strings.TrimSpace(name)]; !ok {
			return nil, nil, fmt.Errorf("unknown step %q", name)
		}
	}

	keep := map[string]struct{}{}
	if len(only) == 0 {
		for _, st := range p.Steps {
			keep[st.Name] = struct{}{}
		}
	} else {
		var visit func(string)
		visit = func(name string) {
			if _, ok := keep[name]; ok {
				return
			}
			keep[name] = struct{}{}
			for _, dep := range p.ByName[name].Needs {
				visit(dep)
			}
		}
		for _, name := range only {
			visit(strings.TrimSpace(name))
		}
	}

	var dropped []string
	if len(skip) > 0 {
		explicit := map[string]struct{}{}
		for _, name := range skip {
			explicit[strings.TrimSpace(name)] = struct{}{}
		}
		dependents := map[string][]string{}
		for _, st := range p.Steps {
			for _, dep := range st.Needs {
				dependents[dep] = append(dependents[dep], st.Name)
			}
		}
		var drop func(string)
		drop = func(name string) {
			if _, ok := keep[name]; !ok {
				return
			}
			delete(keep, name)
			if _, ok := explicit[name]; !ok {
				dropped = append(dropped, name)
			}
			for _, d := range dependents[name] {
				drop(d)
			}
		}
		for _, name := range skip {
			drop(strings.TrimSpace(name))
		}
	}
	sort.Strings(dropped)

	sub := &Plan{Root: p.Root, ManifestName: p.ManifestName}
	for _, st := range p.Steps {
		if _, ok := keep[st.Name]; ok {
			sub.Steps = append(sub.Steps, st)
		}
	}
	if len(sub.Steps) == 0 {
		return nil, dropped, fmt.Errorf("selection leaves no steps to run")
	}
	if err := sub.Reindex(); err != nil {
		return nil, dropped, err
	}
	return sub, dropped, nil
}
