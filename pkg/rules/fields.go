package rules

import (
	"fmt"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// Field is one fingerprint-relevant contribution of a rule. Exactly one of
// the payload variants is set: a coerced value with its coercer, an
// appendable, or a nested rule reference.
type Field struct {
	Name string

	// Coercer and Value carry a coerced attribute value.
	Coercer coercer.TypeCoercer
	Value   any

	// Appendable carries an auxiliary object fingerprinted independently.
	Appendable Appendable

	// Rule carries a direct reference to another rule.
	Rule BuildRule
}

// FieldProvider exposes a rule's fields in stable declared order.
type FieldProvider interface {
	RuleKeyFields() []Field
}

// FieldExtractor is the field-extraction collaborator: given a rule, it
// returns the ordered fields the rule contributes to its own fingerprint.
// The order must be stable across repeated calls within one build.
type FieldExtractor interface {
	Fields(rule BuildRule) ([]Field, error)
}

// DefaultFieldExtractor extracts fields from rules implementing
// FieldProvider.
type DefaultFieldExtractor struct{}

// Fields implements FieldExtractor.
func (DefaultFieldExtractor) Fields(rule BuildRule) ([]Field, error) {
	provider, ok := rule.(FieldProvider)
	if !ok {
		return nil, fmt.Errorf("rule %s (%T) does not expose rule key fields", rule.Target(), rule)
	}
	return provider.RuleKeyFields(), nil
}

// targetRefCollector gathers target source-path references during traversal.
type targetRefCollector struct {
	coercer.NopVisitor
	targets []model.BuildTarget
}

func (c *targetRefCollector) VisitSourcePath(sp model.SourcePath) error {
	if tsp, ok := sp.(model.TargetSourcePath); ok {
		c.targets = append(c.targets, tsp.Target)
	}
	return nil
}

// CollectTargetRefs scans coerced fields for references to other rules'
// outputs and returns the referenced targets in traversal order. Fields
// whose type cannot structurally contain a source path are skipped without
// being walked.
func CollectTargetRefs(fields []Field) ([]model.BuildTarget, error) {
	collector := &targetRefCollector{}
	for _, f := range fields {
		if f.Coercer == nil || !f.Coercer.CanProduce(coercer.KindSourcePath) {
			continue
		}
		if err := f.Coercer.Traverse(f.Value, collector); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return collector.targets, nil
}
