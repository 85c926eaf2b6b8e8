package bootstrap

import (
	"strings"
	"testing"
)

func chainManifest(steps ...StepSpec) *Manifest {
	return &Manifest{Name: "test", Steps: steps}
}

func step(name string, needs ...string) StepSpec {
	return StepSpec{
		Name:    name,
		Needs:   needs,
		Actions: []ActionSpec{{Run: &RunAction{Command: "true"}}},
	}
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestCompileOrderRespectsNeeds(t *testing.T) {
	m := chainManifest(
		step("adflow", "idwarp", "pygeo"),
		step("idwarp", "petsc", "cgns"),
		step("pygeo", "pyspline"),
		step("pyspline"),
		step("petsc"),
		step("cgns"),
	)
	p, err := Compile(m, t.TempDir())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(p.Order) != 6 {
		t.Fatalf("order has %d entries, want 6", len(p.Order))
	}
	deps := map[string][]string{
		"adflow": {"idwarp", "pygeo"},
		"idwarp": {"petsc", "cgns"},
		"pygeo":  {"pyspline"},
	}
	for name, needs := range deps {
		for _, dep := range needs {
			if indexOf(p.Order, dep) > indexOf(p.Order, name) {
				t.Fatalf("%s ordered before its dependency %s: %v", name, dep, p.Order)
			}
		}
	}
	if p.ByName["petsc"].Wave != 0 {
		t.Fatalf("petsc should be wave 0, got %d", p.ByName["petsc"].Wave)
	}
	if p.ByName["adflow"].Wave != 2 {
		t.Fatalf("adflow should be wave 2, got %d", p.ByName["adflow"].Wave)
	}
}

func TestCompileKeepsDeclaredOrderWithoutEdges(t *testing.T) {
	m := chainManifest(step("zeta"), step("alpha"), step("mid"))
	p, err := Compile(m, t.TempDir())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i, name := range want {
		if p.Order[i] != name {
			t.Fatalf("declared order not preserved: got %v want %v", p.Order, want)
		}
	}
}

func TestCompileReportsCyclePath(t *testing.T) {
	m := chainManifest(step("a", "b"), step("b", "c"), step("c", "a"))
	_, err := Compile(m, t.TempDir())
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") || !strings.Contains(err.Error(), "->") {
		t.Fatalf("cycle error should name the path, got: %v", err)
	}
}

func TestCompileRejectsSelfDependency(t *testing.T) {
	m := chainManifest(step("petsc", "petsc"))
	if _, err := Compile(m, t.TempDir()); err == nil {
		t.Fatal("expected self-dependency error")
	}
}

func strPtr(s string) *string { return &s }

func TestCompileResolvesDirs(t *testing.T) {
	root := t.TempDir()
	m := chainManifest(
		StepSpec{Name: "rel", Dir: strPtr("packages/petsc"), Actions: []ActionSpec{{Run: &RunAction{Command: "true"}}}},
		StepSpec{Name: "abs", Dir: strPtr("/opt/cgns"), Actions: []ActionSpec{{Run: &RunAction{Command: "true"}}}},
		StepSpec{Name: "dirless", Dir: strPtr(""), Actions: []ActionSpec{{Run: &RunAction{Command: "true"}}}},
		step("bare"),
	)
	p, err := Compile(m, root)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cases := map[string]string{
		"rel":     root + "/packages/petsc",
		"abs":     "/opt/cgns",
		"dirless": "",
		"bare":    root + "/bare",
	}
	for name, want := range cases {
		if got := p.ByName[name].Dir; got != want {
			t.Fatalf("step %s dir = %q, want %q", name, got, want)
		}
	}
}

func TestCompileMergesDefaultEnv(t *testing.T) {
	m := chainManifest(step("petsc"))
	m.Defaults.Env = map[string]string{"MAKEFLAGS": "-j8"}
	p, err := Compile(m, t.TempDir())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p.ByName["petsc"].BaseEnv["MAKEFLAGS"] != "-j8" {
		t.Fatalf("default env not propagated: %v", p.ByName["petsc"].BaseEnv)
	}
}
