// File: internal/bootstrap/dag.go
// Brief: Dependency validation, wave assignment, and execution order.

package bootstrap

import (
	"fmt"
	"sort"
	"strings"
)

// assignWaves runs Kahn's algorithm over the step graph, stamping each
// step with its topological depth and reporting cycles by path.
func assignWaves(p *Plan) error {
	inDegree := make(map[string]int, len(p.Steps))
	dependents := map[string][]string{}
	for _, st := range p.Steps {
		inDegree[st.Name] = 0
	}
	for _, st := range p.Steps {
		for _, dep := range st.Needs {
			if _, ok := p.ByName[dep]; !ok {
				return fmt.Errorf("step %s needs missing dependency %q", st.Name, dep)
			}
			inDegree[st.Name]++
			dependents[dep] = append(dependents[dep], st.Name)
		}
	}
	for k := range dependents {
		sort.Strings(dependents[k])
	}

	var ready []string
	for _, st := range p.Steps {
		if inDegree[st.Name] == 0 {
			ready = append(ready, st.Name)
		}
	}

	wave := 0
	assigned := 0
	for len(ready) > 0 {
		current := append([]string(nil), ready...)
		ready = ready[:0]
		for _, name := range current {
			p.ByName[name].Wave = wave
			assigned++
		}
		for _, name := range current {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
		wave++
	}

	if assigned != len(p.Steps) {
		var stuck []string
		for _, st := range p.Steps {
			if inDegree[st.Name] > 0 {
				stuck = append(stuck, st.Name)
			}
		}
		sort.Strings(stuck)
		if cycle := findCyclePath(stuck, dependents); len(cycle) > 0 {
			return fmt.Errorf("dependency cycle detected: %s", strings.Join(append(cycle, cycle[0]), " -> "))
		}
		return fmt.Errorf("dependency cycle detected (%d steps): %v", len(stuck), stuck)
	}
	return nil
}

// executionOrder returns a total order: topological, stable by manifest
// declaration index among ready steps. With no needs edges this is
// exactly the declared order.
func executionOrder(p *Plan) ([]string, error) {
	inDegree := make(map[string]int, len(p.Steps))
	dependents := map[string][]string{}
	for _, st := range p.Steps {
		inDegree[st.Name] = 0
	}
	for _, st := range p.Steps {
		for _, dep := range st.Needs {
			inDegree[st.Name]++
			dependents[dep] = append(dependents[dep], st.Name)
		}
	}

	byIndex := func(a, b string) bool {
		return p.ByName[a].manifestIndex < p.ByName[b].manifestIndex
	}
	var ready []string
	for _, st := range p.Steps {
		if inDegree[st.Name] == 0 {
			ready = append(ready, st.Name)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return byIndex(ready[i], ready[j]) })

	order := make([]string, 0, len(p.Steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return byIndex(ready[i], ready[j]) })
	}
	if len(order) != len(p.Steps) {
		return nil, fmt.Errorf("dependency cycle detected")
	}
	return order, nil
}

// findCyclePath walks the dependency edges among stuck steps looking
// for a back edge, returning the cycle members in order.
func findCyclePath(stuck []string, dependents map[string][]string) []string {
	deps := map[string][]string{}
	for dep, outs := range dependents {
		for _, to := range outs {
			deps[to] = append(deps[to], dep)
		}
	}
	stuckSet := map[string]struct{}{}
	for _, name := range stuck {
		stuckSet[name] = struct{}{}
	}

	vis := map[string]bool{}
	onStack := map[string]bool{}
	var stack []string
	var cycle []string
	var dfs func(string) bool
	dfs = func(name string) bool {
		vis[name] = true
		onStack[name] = true
		stack = append(stack, name)
		for _, dep := range deps[name] {
			if _, ok := stuckSet[dep]; !ok {
				continue
			}
			if !vis[dep] {
				if dfs(dep) {
					return true
				}
				continue
			}
			if onStack[dep] {
				idx := -1
				for i := range stack {
					if stack[i] == dep {
						idx = i
						break
					}
				}
				if idx >= 0 {
					cycle = append([]string(nil), stack[idx:]...)
				} else {
					cycle = []string{dep, name}
				}
				return true
			}
		}
		onStack[name] = false
		stack = stack[:len(stack)-1]
		return false
	}
	for _, name := range stuck {
		if vis[name] {
			continue
		}
		if dfs(name) {
			break
		}
	}
	return cycle
}
