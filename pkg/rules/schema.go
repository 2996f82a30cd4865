package rules

import (
	"fmt"
	"sync"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// AttrDef declares one attribute of a rule type: its name, the coercer its
// raw values go through, and whether a declaration may omit it.
type AttrDef struct {
	Name     string
	Coercer  coercer.TypeCoercer
	Required bool
}

// RuleSchema declares the attribute surface of one rule type. Attribute
// order here is the field order rules of this type contribute to their
// fingerprints, independent of the order a build file spells them in.
type RuleSchema struct {
	Type  string
	Attrs []AttrDef
}

// SchemaRegistry holds the known rule types. Safe for concurrent use.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]RuleSchema
}

// NewSchemaRegistry returns a registry preloaded with the built-in rule
// types.
func NewSchemaRegistry() (*SchemaRegistry, error) {
	r := &SchemaRegistry{schemas: make(map[string]RuleSchema)}

	source := coercer.NewSourcePathCoercer()
	sourceList := coercer.NewListCoercer(source)
	stringSet, err := coercer.NewSetCoercer(coercer.NewStringCoercer())
	if err != nil {
		return nil, err
	}
	env, err := coercer.NewSortedMapCoercer(coercer.NewStringCoercer(), coercer.NewStringCoercer())
	if err != nil {
		return nil, err
	}

	builtins := []RuleSchema{
		{
			Type: "filegroup",
			Attrs: []AttrDef{
				{Name: "srcs", Coercer: sourceList, Required: true},
			},
		},
		{
			Type: "genrule",
			Attrs: []AttrDef{
				{Name: "srcs", Coercer: sourceList},
				{Name: "cmd", Coercer: coercer.NewStringCoercer(), Required: true},
				{Name: "out", Coercer: coercer.NewStringCoercer(), Required: true},
				{Name: "env", Coercer: env},
			},
		},
		{
			Type: "export_file",
			Attrs: []AttrDef{
				{Name: "src", Coercer: source, Required: true},
				{Name: "mode", Coercer: coercer.NewStringCoercer()},
			},
		},
		{
			Type: "alias",
			Attrs: []AttrDef{
				{Name: "actual", Coercer: source, Required: true},
			},
		},
		{
			Type: "test_suite",
			Attrs: []AttrDef{
				{Name: "tests", Coercer: sourceList, Required: true},
				{Name: "labels", Coercer: stringSet},
			},
		},
	}
	for _, s := range builtins {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a rule schema. Re-registering a type is an error.
func (r *SchemaRegistry) Register(s RuleSchema) error {
	if s.Type == "" {
		return fmt.Errorf("rule schema has no type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Type]; exists {
		return fmt.Errorf("rule type %s already registered", s.Type)
	}
	r.schemas[s.Type] = s
	return nil
}

// Lookup returns the schema for a rule type.
func (r *SchemaRegistry) Lookup(ruleType string) (RuleSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[ruleType]
	return s, ok
}

// Instantiate coerces a raw declaration into a rule node. Attributes are
// coerced in schema order; unknown attributes and missing required ones are
// errors annotated with the target and attribute.
func (r *SchemaRegistry) Instantiate(target model.BuildTarget, ruleType string, attrs *coercer.RawMap) (*RuleNode, error) {
	schema, ok := r.Lookup(ruleType)
	if !ok {
		return nil, fmt.Errorf("%s: unknown rule type %s", target, ruleType)
	}

	known := make(map[string]struct{}, len(schema.Attrs))
	node := NewRuleNode(target, ruleType)
	for _, def := range schema.Attrs {
		known[def.Name] = struct{}{}
		raw, present := attrs.Get(def.Name)
		if !present {
			if def.Required {
				return nil, fmt.Errorf("%s: rule type %s requires attribute %s", target, ruleType, def.Name)
			}
			continue
		}
		if err := node.AddField(def.Name, def.Coercer, raw); err != nil {
			return nil, err
		}
	}

	for _, entry := range attrs.Entries() {
		name, ok := entry.Key.(string)
		if !ok {
			return nil, fmt.Errorf("%s: attribute name %v is not a string", target, entry.Key)
		}
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("%s: rule type %s has no attribute %s", target, ruleType, name)
		}
	}
	return node, nil
}
