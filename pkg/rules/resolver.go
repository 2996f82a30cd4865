package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// RuleFinder locates the rule producing a target. It is the half of
// source-reference resolution that maps target source paths to rules;
// literal path source paths resolve directly to the filesystem.
type RuleFinder interface {
	FindRule(target model.BuildTarget) (BuildRule, bool)
}

// Resolver is an in-memory rule registry implementing RuleFinder. It is safe
// for concurrent use.
type Resolver struct {
	mu    sync.RWMutex
	rules map[string]BuildRule
}

// NewResolver returns an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{rules: make(map[string]BuildRule)}
}

// Register adds a rule. Registering two rules for the same target is an
// error: target identity must be unique within a build.
func (r *Resolver) Register(rule BuildRule) error {
	label := rule.Target().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rules[label]; exists {
		return fmt.Errorf("duplicate rule for target %s", label)
	}
	r.rules[label] = rule
	return nil
}

// FindRule implements RuleFinder.
func (r *Resolver) FindRule(target model.BuildTarget) (BuildRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[target.String()]
	return rule, ok
}

// All returns every registered rule ordered by target label.
func (r *Resolver) All() []BuildRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]BuildRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Target().Less(out[j].Target())
	})
	return out
}

// WireDeclaredDeps resolves every target reference reachable from node's
// coerced fields and records the producing rules as declared dependencies.
// Unresolvable references are an error naming the target and the reference.
func WireDeclaredDeps(node *RuleNode, finder RuleFinder) error {
	refs, err := CollectTargetRefs(node.RuleKeyFields())
	if err != nil {
		return fmt.Errorf("%s: %w", node.Target(), err)
	}
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		label := ref.String()
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		dep, ok := finder.FindRule(ref)
		if !ok {
			return fmt.Errorf("%s: no rule produces %s", node.Target(), label)
		}
		node.AddDeclaredDep(dep)
	}
	return nil
}
