package keys

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/hashing"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

func mustTarget(t *testing.T, label string) model.BuildTarget {
	t.Helper()
	target, err := model.ParseTarget(label)
	if err != nil {
		t.Fatalf("ParseTarget(%q) failed: %v", label, err)
	}
	return target
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// countingExtractor counts field extractions per target.
type countingExtractor struct {
	inner rules.FieldExtractor

	mu     sync.Mutex
	counts map[string]int
}

func newCountingExtractor() *countingExtractor {
	return &countingExtractor{
		inner:  rules.DefaultFieldExtractor{},
		counts: make(map[string]int),
	}
}

func (c *countingExtractor) Fields(rule rules.BuildRule) ([]rules.Field, error) {
	c.mu.Lock()
	c.counts[rule.Target().String()]++
	c.mu.Unlock()
	return c.inner.Fields(rule)
}

func (c *countingExtractor) count(label string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[label]
}

func newFactory(t *testing.T, root string, finder rules.RuleFinder, extractor rules.FieldExtractor) *DefaultRuleKeyFactory {
	t.Helper()
	f, err := NewDefaultRuleKeyFactory(FactoryConfig{
		Hasher:    hashing.NewMemoHasher(hashing.NewSha256Hasher(root)),
		Finder:    finder,
		Extractor: extractor,
	})
	if err != nil {
		t.Fatalf("NewDefaultRuleKeyFactory failed: %v", err)
	}
	return f
}

// buildLibApp constructs the standard fixture graph:
//
//	//lib:a   srcs=[lib/a.c]
//	//app:bin srcs=[//lib:a, app/main.c]
//	//other:x srcs=[other/x.c]   (unrelated branch)
func buildLibApp(t *testing.T, root string) *rules.Resolver {
	t.Helper()
	writeFile(t, root, "lib/a.c", "int a;")
	writeFile(t, root, "app/main.c", "int main() {}")
	writeFile(t, root, "other/x.c", "int x;")

	resolver := rules.NewResolver()
	srcs := coercer.NewListCoercer(coercer.NewSourcePathCoercer())

	lib := rules.NewRuleNode(mustTarget(t, "//lib:a"), "c_library")
	if err := lib.AddField("srcs", srcs, []any{"lib/a.c"}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if err := resolver.Register(lib); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	bin := rules.NewRuleNode(mustTarget(t, "//app:bin"), "c_binary")
	if err := bin.AddField("srcs", srcs, []any{"//lib:a", "app/main.c"}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	bin.AddDeclaredDep(lib)
	if err := resolver.Register(bin); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	other := rules.NewRuleNode(mustTarget(t, "//other:x"), "c_library")
	if err := other.AddField("srcs", srcs, []any{"other/x.c"}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if err := resolver.Register(other); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return resolver
}

func keyOf(t *testing.T, f *DefaultRuleKeyFactory, finder *rules.Resolver, label string) RuleKey {
	t.Helper()
	rule, ok := finder.FindRule(mustTarget(t, label))
	if !ok {
		t.Fatalf("no rule %s", label)
	}
	key, err := f.Build(rule)
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", label, err)
	}
	return key
}

func TestDeterminismAcrossFactories(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)

	first := newFactory(t, root, resolver, nil)
	second := newFactory(t, root, resolver, nil)

	for _, label := range []string{"//lib:a", "//app:bin", "//other:x"} {
		a := keyOf(t, first, resolver, label)
		b := keyOf(t, second, resolver, label)
		if a != b {
			t.Errorf("%s: independent factories disagree: %s vs %s", label, a, b)
		}
	}
}

func TestMemoization(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)
	extractor := newCountingExtractor()
	factory := newFactory(t, root, resolver, extractor)

	var keys []RuleKey
	for i := 0; i < 5; i++ {
		keys = append(keys, keyOf(t, factory, resolver, "//app:bin"))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[0] {
			t.Fatal("repeated Build returned different keys")
		}
	}
	if got := extractor.count("//app:bin"); got != 1 {
		t.Errorf("//app:bin fields extracted %d times, want 1", got)
	}
	if got := extractor.count("//lib:a"); got != 1 {
		t.Errorf("//lib:a fields extracted %d times, want 1", got)
	}
}

func TestListOrderSensitivity(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.c", "a")
	writeFile(t, root, "b.c", "b")

	srcs := coercer.NewListCoercer(coercer.NewSourcePathCoercer())

	makeRule := func(order []any) (*rules.Resolver, *rules.RuleNode) {
		resolver := rules.NewResolver()
		node := rules.NewRuleNode(model.BuildTarget{Package: "lib", Name: "a"}, "c_library")
		if err := node.AddField("srcs", srcs, order); err != nil {
			t.Fatalf("AddField failed: %v", err)
		}
		if err := resolver.Register(node); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		return resolver, node
	}

	resolverAB, ruleAB := makeRule([]any{"a.c", "b.c"})
	resolverBA, ruleBA := makeRule([]any{"b.c", "a.c"})

	keyAB, err := newFactory(t, root, resolverAB, nil).Build(ruleAB)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	keyBA, err := newFactory(t, root, resolverBA, nil).Build(ruleBA)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if keyAB == keyBA {
		t.Error("permuting a list field did not change the rule key")
	}
}

func TestSortedMapInsertionOrderInvariance(t *testing.T) {
	root := t.TempDir()

	env, err := coercer.NewSortedMapCoercer(coercer.NewStringCoercer(), coercer.NewStringCoercer())
	if err != nil {
		t.Fatalf("NewSortedMapCoercer failed: %v", err)
	}

	makeRule := func(pairs [][2]string) (*rules.Resolver, *rules.RuleNode) {
		raw := coercer.NewRawMap()
		for _, p := range pairs {
			raw.Set(p[0], p[1])
		}
		resolver := rules.NewResolver()
		node := rules.NewRuleNode(model.BuildTarget{Package: "lib", Name: "a"}, "genrule")
		if err := node.AddField("env", env, raw); err != nil {
			t.Fatalf("AddField failed: %v", err)
		}
		if err := resolver.Register(node); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		return resolver, node
	}

	resolverFwd, ruleFwd := makeRule([][2]string{{"CC", "clang"}, {"LD", "lld"}})
	resolverRev, ruleRev := makeRule([][2]string{{"LD", "lld"}, {"CC", "clang"}})

	keyFwd, err := newFactory(t, root, resolverFwd, nil).Build(ruleFwd)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	keyRev, err := newFactory(t, root, resolverRev, nil).Build(ruleRev)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if keyFwd != keyRev {
		t.Error("sorted-map insertion order leaked into the rule key")
	}
}

func TestDependencyPropagation(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)

	before := newFactory(t, root, resolver, nil)
	libBefore := keyOf(t, before, resolver, "//lib:a")
	binBefore := keyOf(t, before, resolver, "//app:bin")
	otherBefore := keyOf(t, before, resolver, "//other:x")

	// Change the leaf file; a fresh factory sees the new contents.
	writeFile(t, root, "lib/a.c", "int a; /* edited */")

	after := newFactory(t, root, resolver, nil)
	libAfter := keyOf(t, after, resolver, "//lib:a")
	binAfter := keyOf(t, after, resolver, "//app:bin")
	otherAfter := keyOf(t, after, resolver, "//other:x")

	if libBefore == libAfter {
		t.Error("editing lib/a.c did not change //lib:a's key")
	}
	if binBefore == binAfter {
		t.Error("editing a transitive input did not propagate to //app:bin")
	}
	if otherBefore != otherAfter {
		t.Error("unrelated branch //other:x changed")
	}
}

func TestUnresolvableSourceReference(t *testing.T) {
	root := t.TempDir()
	resolver := rules.NewResolver()

	node := rules.NewRuleNode(mustTarget(t, "//app:bin"), "c_binary")
	srcs := coercer.NewListCoercer(coercer.NewSourcePathCoercer())
	if err := node.AddField("srcs", srcs, []any{"//lib:missing"}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if err := resolver.Register(node); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	factory := newFactory(t, root, resolver, nil)
	if _, err := factory.Build(node); err == nil {
		t.Error("source reference to a missing rule should fail the build")
	}
}

func TestSeedChangesEveryKey(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)

	base := newFactory(t, root, resolver, nil)

	seeded, err := NewDefaultRuleKeyFactory(FactoryConfig{
		Seed:   1,
		Hasher: hashing.NewMemoHasher(hashing.NewSha256Hasher(root)),
		Finder: resolver,
	})
	if err != nil {
		t.Fatalf("NewDefaultRuleKeyFactory failed: %v", err)
	}

	for _, label := range []string{"//lib:a", "//app:bin", "//other:x"} {
		if keyOf(t, base, resolver, label) == keyOf(t, seeded, resolver, label) {
			t.Errorf("%s: seed change did not change the key", label)
		}
	}
}

func TestDistinctBuildIDs(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)
	a := newFactory(t, root, resolver, nil)
	b := newFactory(t, root, resolver, nil)
	if a.BuildID() == b.BuildID() || a.BuildID() == "" {
		t.Error("factories should carry distinct non-empty build IDs")
	}
}
