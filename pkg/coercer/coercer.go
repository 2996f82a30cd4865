// Package coercer converts raw attribute values from build-file evaluation
// into strongly-typed values, and walks typed values to surface the scalars,
// paths and source references they contain.
//
// Coercers are stateless and immutable. They are constructed once, composed
// by construction (container coercers wrap element coercers), and shared
// freely across goroutines.
package coercer

import (
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// ElementKind classifies the leaf values a coercer's output type can contain.
// It exists so callers can pre-filter attributes without coercing or walking
// them: CanProduce answers purely from static type structure.
type ElementKind int

const (
	KindBool ElementKind = iota
	KindInt
	KindString
	KindPath
	KindSourcePath
)

// ContainerKind tags container boundaries during traversal so that the same
// scalars in differently-shaped containers never look identical downstream.
type ContainerKind byte

const (
	ContainerList ContainerKind = iota + 1
	ContainerSet
	ContainerMap
	ContainerSortedMap
)

// Visitor receives every element of a typed value during traversal. Each
// method corresponds to one leaf or structural variant; a visitor that only
// cares about some variants embeds NopVisitor.
type Visitor interface {
	VisitBool(v bool) error
	VisitInt(v int64) error
	VisitString(v string) error
	VisitPath(path string) error
	VisitSourcePath(sp model.SourcePath) error

	// EnterContainer and LeaveContainer bracket container contents.
	// length is the element count for lists/sets and the entry count for maps.
	EnterContainer(kind ContainerKind, length int) error
	LeaveContainer(kind ContainerKind) error
}

// TypeCoercer is the per-type strategy for one declared attribute type.
//
// Coerce turns a raw value into the typed counterpart or fails with a
// *CoerceError naming the raw value and the expected shape. Traverse walks a
// previously coerced value in the coercer's defined order. CanProduce reports
// whether the output type could structurally contain any of the given kinds.
type TypeCoercer interface {
	// Name is the human-readable shape name used in error messages,
	// e.g. "string" or "sorted_map<string, int>".
	Name() string

	Coerce(raw any) (any, error)
	Traverse(value any, v Visitor) error
	CanProduce(kinds ...ElementKind) bool
}

// Ordered is implemented by coercers whose output type supports a total
// order. Set coercers require it of their element coercer and sorted-map
// coercers of their key coercer; the resulting canonical iteration order is
// what keeps fingerprints stable across insertion orders.
type Ordered interface {
	// Compare orders two coerced values of this coercer's output type.
	Compare(a, b any) int
}

// NopVisitor implements Visitor with no-ops. Embed it to implement only the
// variants a visitor cares about.
type NopVisitor struct{}

func (NopVisitor) VisitBool(bool) error                      { return nil }
func (NopVisitor) VisitInt(int64) error                      { return nil }
func (NopVisitor) VisitString(string) error                  { return nil }
func (NopVisitor) VisitPath(string) error                    { return nil }
func (NopVisitor) VisitSourcePath(model.SourcePath) error    { return nil }
func (NopVisitor) EnterContainer(ContainerKind, int) error   { return nil }
func (NopVisitor) LeaveContainer(ContainerKind) error        { return nil }

// Pair is one entry of a coerced map or sorted map. Maps coerce to []Pair so
// that entry order survives coercion; Go maps would not preserve it.
type Pair struct {
	Key   any
	Value any
}

// RawEntry is one entry of a RawMap.
type RawEntry struct {
	Key   any
	Value any
}

// RawMap is an insertion-ordered raw mapping. The build-file layer produces
// RawMaps for dict-shaped attribute values so that plain map coercers can
// preserve source order.
type RawMap struct {
	entries []RawEntry
}

// NewRawMap returns an empty RawMap.
func NewRawMap() *RawMap {
	return &RawMap{}
}

// Set appends an entry. Later duplicates of the same key overwrite in place,
// keeping the original position.
func (m *RawMap) Set(key, value any) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = value
			return
		}
	}
	m.entries = append(m.entries, RawEntry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *RawMap) Get(key any) (any, bool) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			return m.entries[i].Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (m *RawMap) Len() int {
	return len(m.entries)
}

// Entries returns the entries in insertion order. The slice is shared; do
// not mutate it.
func (m *RawMap) Entries() []RawEntry {
	return m.entries
}

func containsKind(kinds []ElementKind, k ElementKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
