package keys

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

// countingAppendable counts how many times its data is actually folded.
type countingAppendable struct {
	rules.AppendableBase
	flags   []string
	appends atomic.Int64
}

func newCountingAppendable(flags ...string) *countingAppendable {
	return &countingAppendable{AppendableBase: rules.NewAppendableBase(), flags: flags}
}

func (c *countingAppendable) AppendToRuleKey(sink rules.RuleKeySink) error {
	c.appends.Add(1)
	for _, flag := range c.flags {
		if err := sink.AddString("flag", flag); err != nil {
			return err
		}
	}
	return nil
}

func TestSharedAppendableFingerprintedOnce(t *testing.T) {
	root := t.TempDir()
	resolver := rules.NewResolver()
	shared := newCountingAppendable("-O2", "-g")

	var nodes []rules.BuildRule
	for _, name := range []string{"a", "b", "c"} {
		node := rules.NewRuleNode(model.BuildTarget{Package: "lib", Name: name}, "c_library")
		node.AddAppendableField("compiler", shared)
		if err := resolver.Register(node); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		nodes = append(nodes, node)
	}

	factory := newFactory(t, root, resolver, nil)
	for _, node := range nodes {
		if _, err := factory.Build(node); err != nil {
			t.Fatalf("Build(%s) failed: %v", node.Target(), err)
		}
	}

	if got := shared.appends.Load(); got != 1 {
		t.Errorf("shared appendable folded %d times, want 1", got)
	}
	if got := factory.CachedAppendableKeys(); got != 1 {
		t.Errorf("appendable cache holds %d keys, want 1", got)
	}
}

func TestAppendableContentInfluencesKey(t *testing.T) {
	root := t.TempDir()

	keyWith := func(a rules.Appendable) RuleKey {
		resolver := rules.NewResolver()
		node := rules.NewRuleNode(model.BuildTarget{Package: "lib", Name: "a"}, "c_library")
		node.AddAppendableField("compiler", a)
		if err := resolver.Register(node); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		key, err := newFactory(t, root, resolver, nil).Build(node)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return key
	}

	debug := keyWith(newCountingAppendable("-O0", "-g"))
	release := keyWith(newCountingAppendable("-O2"))
	sameAsDebug := keyWith(newCountingAppendable("-O0", "-g"))

	if debug == release {
		t.Error("different appendable contents produced equal keys")
	}
	if debug != sameAsDebug {
		t.Error("equal appendable contents produced different keys")
	}
}

func TestBuildAll(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)
	extractor := newCountingExtractor()
	factory := newFactory(t, root, resolver, extractor)

	sequential := newFactory(t, root, resolver, nil)

	all := resolver.All()
	got, err := BuildAll(context.Background(), factory, all, 8)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	if len(got) != len(all) {
		t.Fatalf("BuildAll returned %d keys, want %d", len(got), len(all))
	}
	for _, rule := range all {
		label := rule.Target().String()
		want, err := sequential.Build(rule)
		if err != nil {
			t.Fatalf("Build(%s) failed: %v", label, err)
		}
		if got[label] != want {
			t.Errorf("%s: parallel and sequential keys differ", label)
		}
		if n := extractor.count(label); n != 1 {
			t.Errorf("%s: fields extracted %d times under parallelism, want 1", label, n)
		}
	}
}

func TestBuildAllCancellation(t *testing.T) {
	root := t.TempDir()
	resolver := buildLibApp(t, root)
	factory := newFactory(t, root, resolver, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := BuildAll(ctx, factory, resolver.All(), 2); err == nil {
		t.Error("BuildAll with a cancelled context should fail")
	}
}
