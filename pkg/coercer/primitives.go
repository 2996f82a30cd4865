package coercer

import (
	"fmt"
	"strings"
)

// StringCoercer coerces raw strings.
type StringCoercer struct{}

// NewStringCoercer returns the string coercer.
func NewStringCoercer() StringCoercer { return StringCoercer{} }

func (StringCoercer) Name() string { return "string" }

func (c StringCoercer) Coerce(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	return s, nil
}

func (StringCoercer) Traverse(value any, v Visitor) error {
	return v.VisitString(value.(string))
}

func (StringCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindString)
}

func (StringCoercer) Compare(a, b any) int {
	return strings.Compare(a.(string), b.(string))
}

// IntCoercer coerces raw integers to int64.
type IntCoercer struct{}

// NewIntCoercer returns the integer coercer.
func NewIntCoercer() IntCoercer { return IntCoercer{} }

func (IntCoercer) Name() string { return "int" }

func (c IntCoercer) Coerce(raw any) (any, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return nil, mismatch(raw, c.Name())
	}
}

func (IntCoercer) Traverse(value any, v Visitor) error {
	return v.VisitInt(value.(int64))
}

func (IntCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindInt)
}

func (IntCoercer) Compare(a, b any) int {
	x, y := a.(int64), b.(int64)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// BoolCoercer coerces raw booleans.
type BoolCoercer struct{}

// NewBoolCoercer returns the boolean coercer.
func NewBoolCoercer() BoolCoercer { return BoolCoercer{} }

func (BoolCoercer) Name() string { return "bool" }

func (c BoolCoercer) Coerce(raw any) (any, error) {
	b, ok := raw.(bool)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	return b, nil
}

func (BoolCoercer) Traverse(value any, v Visitor) error {
	return v.VisitBool(value.(bool))
}

func (BoolCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindBool)
}

// EnumCoercer coerces raw strings restricted to a closed set of members.
// Coerced values are plain strings; membership is checked at coercion time.
type EnumCoercer struct {
	name    string
	members map[string]struct{}
	ordered []string
}

// NewEnumCoercer builds an enum coercer named name with the given members.
func NewEnumCoercer(name string, members ...string) EnumCoercer {
	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}
	return EnumCoercer{name: name, members: set, ordered: append([]string(nil), members...)}
}

func (c EnumCoercer) Name() string { return c.name }

func (c EnumCoercer) Coerce(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, mismatch(raw, c.name)
	}
	if _, ok := c.members[s]; !ok {
		return nil, elementFailure(raw, c.name,
			fmt.Errorf("%q is not one of %v", s, c.ordered))
	}
	return s, nil
}

func (c EnumCoercer) Traverse(value any, v Visitor) error {
	return v.VisitString(value.(string))
}

func (c EnumCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindString)
}

func (c EnumCoercer) Compare(a, b any) int {
	return strings.Compare(a.(string), b.(string))
}
