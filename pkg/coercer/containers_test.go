package coercer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestListCoercePreservesOrder(t *testing.T) {
	c := NewListCoercer(NewStringCoercer())

	got, err := c.Coerce([]any{"b", "a", "c"})
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	want := []any{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Coerce = %v, want %v", got, want)
	}

	v := &traceVisitor{}
	if err := c.Traverse(got, v); err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if v.trace() != "enter:1/3 str:b str:a str:c leave:1" {
		t.Errorf("unexpected traversal order: %s", v.trace())
	}
}

func TestListCoerceRejectsMapping(t *testing.T) {
	c := NewListCoercer(NewStringCoercer())
	_, err := c.Coerce(map[string]any{"a": 1})
	var ce *CoerceError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CoerceError, got %v", err)
	}
	if ce.Expected != "list<string>" {
		t.Errorf("expected shape list<string>, got %q", ce.Expected)
	}
}

func TestListElementFailureNamesIndex(t *testing.T) {
	c := NewListCoercer(NewStringCoercer())
	_, err := c.Coerce([]any{"ok", 3})
	if err == nil {
		t.Fatal("expected element failure")
	}
	if got := err.Error(); !strings.Contains(got, "element 1") {
		t.Errorf("error should name failing index, got %q", got)
	}
}

func TestSetCoerceCanonicalizes(t *testing.T) {
	c, err := NewSetCoercer(NewStringCoercer())
	if err != nil {
		t.Fatalf("NewSetCoercer failed: %v", err)
	}

	got, err := c.Coerce([]any{"b", "a", "b", "c", "a"})
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	want := []any{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Coerce = %v, want %v", got, want)
	}
}

func TestSetCoercerRequiresOrderedElement(t *testing.T) {
	if _, err := NewSetCoercer(NewBoolCoercer()); err == nil {
		t.Error("bool elements have no order; constructor should fail")
	}
}

func TestMapCoercePreservesRawMapOrder(t *testing.T) {
	c := NewMapCoercer(NewStringCoercer(), NewIntCoercer())

	raw := NewRawMap()
	raw.Set("z", 1)
	raw.Set("a", 2)

	got, err := c.Coerce(raw)
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	pairs := got.([]Pair)
	if len(pairs) != 2 || pairs[0].Key != "z" || pairs[1].Key != "a" {
		t.Errorf("insertion order not preserved: %v", pairs)
	}
}

func TestMapCoerceSortsPlainMapKeys(t *testing.T) {
	c := NewMapCoercer(NewStringCoercer(), NewIntCoercer())

	got, err := c.Coerce(map[string]any{"z": 1, "a": 2, "m": 3})
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	pairs := got.([]Pair)
	keys := []any{pairs[0].Key, pairs[1].Key, pairs[2].Key}
	if !reflect.DeepEqual(keys, []any{"a", "m", "z"}) {
		t.Errorf("plain map keys not canonicalized: %v", keys)
	}
}

func TestSortedMapCoerce(t *testing.T) {
	c, err := NewSortedMapCoercer(NewStringCoercer(), NewIntCoercer())
	if err != nil {
		t.Fatalf("NewSortedMapCoercer failed: %v", err)
	}

	// Two insertion orders of identical content.
	first := NewRawMap()
	first.Set("b", 2)
	first.Set("a", 1)
	second := NewRawMap()
	second.Set("a", 1)
	second.Set("b", 2)

	gotFirst, err := c.Coerce(first)
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	gotSecond, err := c.Coerce(second)
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}
	if !reflect.DeepEqual(gotFirst, gotSecond) {
		t.Errorf("insertion order leaked into sorted map: %v vs %v", gotFirst, gotSecond)
	}

	pairs := gotFirst.([]Pair)
	if pairs[0].Key != "a" || pairs[1].Key != "b" {
		t.Errorf("sorted map should iterate ascending, got %v", pairs)
	}

	v := &traceVisitor{}
	if err := c.Traverse(gotFirst, v); err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	if v.trace() != "enter:4/2 str:a int:1 str:b int:2 leave:4" {
		t.Errorf("unexpected traversal: %s", v.trace())
	}
}

func TestSortedMapWellFormedMapping(t *testing.T) {
	c, err := NewSortedMapCoercer(NewStringCoercer(), NewIntCoercer())
	if err != nil {
		t.Fatalf("NewSortedMapCoercer failed: %v", err)
	}
	got, err := c.Coerce(map[string]any{"x": 10, "a": 1})
	if err != nil {
		t.Fatalf("well-formed string-to-int mapping should coerce: %v", err)
	}
	pairs := got.([]Pair)
	if pairs[0].Key != "a" || pairs[1].Key != "x" {
		t.Errorf("ascending key order expected, got %v", pairs)
	}
}

func TestSortedMapDuplicateKey(t *testing.T) {
	c, err := NewSortedMapCoercer(NewIntCoercer(), NewStringCoercer())
	if err != nil {
		t.Fatalf("NewSortedMapCoercer failed: %v", err)
	}
	raw := &RawMap{entries: []RawEntry{{Key: 1, Value: "a"}, {Key: 1, Value: "b"}}}
	// RawMap.Set would have collapsed these; a hand-built duplicate must fail.
	if _, err := c.Coerce(raw); err == nil {
		t.Error("duplicate coerced key should fail")
	}
}

func TestSortedMapRequiresOrderedKey(t *testing.T) {
	if _, err := NewSortedMapCoercer(NewBoolCoercer(), NewStringCoercer()); err == nil {
		t.Error("bool keys have no order; constructor should fail")
	}
}

func TestNestedContainerTraversal(t *testing.T) {
	inner := NewListCoercer(NewStringCoercer())
	outer := NewListCoercer(inner)

	typed, err := outer.Coerce([]any{[]any{"a", "b"}, []any{"c"}})
	if err != nil {
		t.Fatalf("Coerce failed: %v", err)
	}

	v := &traceVisitor{}
	if err := outer.Traverse(typed, v); err != nil {
		t.Fatalf("Traverse failed: %v", err)
	}
	want := "enter:1/2 enter:1/2 str:a str:b leave:1 enter:1/1 str:c leave:1 leave:1"
	if v.trace() != want {
		t.Errorf("nested traversal = %s, want %s", v.trace(), want)
	}
}
