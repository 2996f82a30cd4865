package buildfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
)

func evalSource(t *testing.T, pkg, src string) []RawTarget {
	t.Helper()
	targets, err := NewEvaluator().EvalSource(context.Background(), pkg, "BUCK", src)
	if err != nil {
		t.Fatalf("EvalSource failed: %v", err)
	}
	return targets
}

func TestRuleDeclaration(t *testing.T) {
	targets := evalSource(t, "lib", `
rule(
    name = "a",
    type = "c_library",
    srcs = ["a.c", "a.h"],
    visibility = True,
    opt_level = 2,
)

rule(name = "b", type = "c_binary", srcs = ["b.c"])
`)

	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(targets))
	}

	a := targets[0]
	if got := a.Target.String(); got != "//lib:a" {
		t.Errorf("target = %s, want //lib:a", got)
	}
	if a.Type != "c_library" {
		t.Errorf("type = %s, want c_library", a.Type)
	}

	entries := a.Attrs.Entries()
	if len(entries) != 3 {
		t.Fatalf("got %d attrs, want 3", len(entries))
	}
	// Declaration order holds.
	for i, want := range []string{"srcs", "visibility", "opt_level"} {
		if entries[i].Key != want {
			t.Errorf("attr %d = %s, want %s", i, entries[i].Key, want)
		}
	}

	srcs, ok := entries[0].Value.([]any)
	if !ok || len(srcs) != 2 || srcs[0] != "a.c" || srcs[1] != "a.h" {
		t.Errorf("srcs = %#v, want [a.c a.h]", entries[0].Value)
	}
	if entries[1].Value != true {
		t.Errorf("visibility = %#v, want true", entries[1].Value)
	}
	if entries[2].Value != int64(2) {
		t.Errorf("opt_level = %#v, want int64(2)", entries[2].Value)
	}

	if got := targets[1].Target.String(); got != "//lib:b" {
		t.Errorf("second target = %s, want //lib:b", got)
	}
}

func TestDictAttributeKeepsWrittenOrder(t *testing.T) {
	targets := evalSource(t, "lib", `
rule(
    name = "a",
    type = "genrule",
    env = {"ZZ": "last-written-first", "AA": "second"},
)
`)

	raw, ok := targets[0].Attrs.Entries()[0].Value.(*coercer.RawMap)
	if !ok {
		t.Fatalf("env is %T, want *coercer.RawMap", targets[0].Attrs.Entries()[0].Value)
	}
	entries := raw.Entries()
	if len(entries) != 2 || entries[0].Key != "ZZ" || entries[1].Key != "AA" {
		t.Errorf("dict order not preserved: %#v", entries)
	}
}

func TestStarlarkLogicRuns(t *testing.T) {
	targets := evalSource(t, "gen", `
names = ["one", "two", "three"]

for n in names:
    rule(name = n, type = "stub", idx = names.index(n))
`)

	if len(targets) != 3 {
		t.Fatalf("got %d targets, want 3", len(targets))
	}
	if targets[2].Target.Name != "three" {
		t.Errorf("third target = %s, want three", targets[2].Target.Name)
	}
	if got := targets[1].Attrs.Entries()[0].Value; got != int64(1) {
		t.Errorf("idx of second target = %#v, want 1", got)
	}
}

func TestPackageNameBuiltin(t *testing.T) {
	targets := evalSource(t, "some/pkg", `
rule(name = "a", type = "stub", where = package_name())
`)
	if got := targets[0].Attrs.Entries()[0].Value; got != "some/pkg" {
		t.Errorf("package_name() = %#v, want some/pkg", got)
	}
}

func TestCellStamping(t *testing.T) {
	e := NewEvaluator(WithCell("toolchains"))
	targets, err := e.EvalSource(context.Background(), "cc", "BUCK", `rule(name = "gcc", type = "toolchain")`)
	if err != nil {
		t.Fatalf("EvalSource failed: %v", err)
	}
	if got := targets[0].Target.String(); got != "toolchains//cc:gcc" {
		t.Errorf("target = %s, want toolchains//cc:gcc", got)
	}
}

func TestDeclarationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing name", `rule(type = "c_library")`},
		{"missing type", `rule(name = "a")`},
		{"positional args", `rule("a", "c_library")`},
		{"duplicate name", "rule(name = \"a\", type = \"x\")\nrule(name = \"a\", type = \"y\")"},
		{"non-string name", `rule(name = 42, type = "x")`},
		{"unsupported attr", `rule(name = "a", type = "x", fn = len)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEvaluator().EvalSource(context.Background(), "lib", "BUCK", tt.src); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestEvalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BUCK")
	if err := os.WriteFile(path, []byte(`rule(name = "a", type = "stub")`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	targets, err := NewEvaluator().EvalFile(context.Background(), "lib", path)
	if err != nil {
		t.Fatalf("EvalFile failed: %v", err)
	}
	if len(targets) != 1 || targets[0].Target.String() != "//lib:a" {
		t.Errorf("unexpected targets: %#v", targets)
	}
}
