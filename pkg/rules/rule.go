// Package rules defines the build-rule node model: typed rule nodes with
// declared fields and dependencies, appendable auxiliary objects, the sink
// interface rule data is fed into at fingerprint time, and the collaborator
// interfaces the rule-key layer resolves references through.
package rules

import (
	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// BuildRule is a node of the (acyclic) build dependency graph. Identity is
// the target label, stable for the lifetime of a build.
type BuildRule interface {
	Target() model.BuildTarget
	Type() string

	// DeclaredDeps are the dependencies named in the build file.
	DeclaredDeps() []BuildRule

	// ExtraDeps are dependencies attached by rule implementations beyond the
	// declared ones (toolchains, implicit inputs).
	ExtraDeps() []BuildRule
}

// RuleNode is the standard BuildRule implementation. Fields are recorded in
// declaration order; that order is the stable field order the rule-key
// factory relies on.
type RuleNode struct {
	target       model.BuildTarget
	ruleType     string
	declaredDeps []BuildRule
	extraDeps    []BuildRule
	fields       []Field
}

// NewRuleNode builds a rule node for target with the given rule type.
func NewRuleNode(target model.BuildTarget, ruleType string) *RuleNode {
	return &RuleNode{target: target, ruleType: ruleType}
}

func (n *RuleNode) Target() model.BuildTarget { return n.target }
func (n *RuleNode) Type() string              { return n.ruleType }

func (n *RuleNode) DeclaredDeps() []BuildRule { return n.declaredDeps }
func (n *RuleNode) ExtraDeps() []BuildRule    { return n.extraDeps }

// AddDeclaredDep appends a declared dependency.
func (n *RuleNode) AddDeclaredDep(dep BuildRule) { n.declaredDeps = append(n.declaredDeps, dep) }

// AddExtraDep appends an extra dependency.
func (n *RuleNode) AddExtraDep(dep BuildRule) { n.extraDeps = append(n.extraDeps, dep) }

// AddField coerces raw against c and records the typed value under name, in
// declaration order. A coercion failure is annotated with this rule's target
// and the attribute name, and leaves the node unchanged.
func (n *RuleNode) AddField(name string, c coercer.TypeCoercer, raw any) error {
	typed, err := c.Coerce(raw)
	if err != nil {
		return coercer.Located(err, n.target.String(), name)
	}
	n.fields = append(n.fields, Field{Name: name, Coercer: c, Value: typed})
	return nil
}

// AddTypedField records an already-coerced value. Callers own the value's
// shape agreement with c.
func (n *RuleNode) AddTypedField(name string, c coercer.TypeCoercer, typed any) {
	n.fields = append(n.fields, Field{Name: name, Coercer: c, Value: typed})
}

// AddAppendableField records an appendable contribution under name.
func (n *RuleNode) AddAppendableField(name string, a Appendable) {
	n.fields = append(n.fields, Field{Name: name, Appendable: a})
}

// AddRuleField records a direct nested-rule reference under name.
func (n *RuleNode) AddRuleField(name string, rule BuildRule) {
	n.fields = append(n.fields, Field{Name: name, Rule: rule})
}

// RuleKeyFields implements FieldProvider: fields in declaration order.
func (n *RuleNode) RuleKeyFields() []Field { return n.fields }
