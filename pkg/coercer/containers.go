package coercer

import (
	"fmt"
	"sort"
	"strings"
)

// ListCoercer coerces raw sequences into ordered lists of its element type.
// List order is semantically meaningful and is preserved through coercion
// and traversal.
type ListCoercer struct {
	elem TypeCoercer
}

// NewListCoercer builds a list coercer over elem.
func NewListCoercer(elem TypeCoercer) *ListCoercer {
	return &ListCoercer{elem: elem}
}

func (c *ListCoercer) Name() string {
	return fmt.Sprintf("list<%s>", c.elem.Name())
}

func (c *ListCoercer) Coerce(raw any) (any, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	out := make([]any, len(seq))
	for i, item := range seq {
		coerced, err := c.elem.Coerce(item)
		if err != nil {
			return nil, elementFailure(raw, c.Name(),
				fmt.Errorf("element %d: %w", i, err))
		}
		out[i] = coerced
	}
	return out, nil
}

func (c *ListCoercer) Traverse(value any, v Visitor) error {
	items := value.([]any)
	if err := v.EnterContainer(ContainerList, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := c.elem.Traverse(item, v); err != nil {
			return err
		}
	}
	return v.LeaveContainer(ContainerList)
}

func (c *ListCoercer) CanProduce(kinds ...ElementKind) bool {
	return c.elem.CanProduce(kinds...)
}

// SetCoercer coerces raw sequences into canonical sets: duplicates are
// dropped and elements always iterate in the element coercer's sort order,
// regardless of source order. The element coercer must implement Ordered.
type SetCoercer struct {
	elem    TypeCoercer
	compare Ordered
}

// NewSetCoercer builds a set coercer over elem. It fails if elem's output
// type does not support a total order.
func NewSetCoercer(elem TypeCoercer) (*SetCoercer, error) {
	ord, ok := elem.(Ordered)
	if !ok {
		return nil, fmt.Errorf("set element type %s does not support ordering", elem.Name())
	}
	return &SetCoercer{elem: elem, compare: ord}, nil
}

func (c *SetCoercer) Name() string {
	return fmt.Sprintf("set<%s>", c.elem.Name())
}

func (c *SetCoercer) Coerce(raw any) (any, error) {
	seq, ok := raw.([]any)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	out := make([]any, 0, len(seq))
	for i, item := range seq {
		coerced, err := c.elem.Coerce(item)
		if err != nil {
			return nil, elementFailure(raw, c.Name(),
				fmt.Errorf("element %d: %w", i, err))
		}
		out = append(out, coerced)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.compare.Compare(out[i], out[j]) < 0
	})
	// Drop adjacent duplicates after sorting.
	deduped := out[:0]
	for i, item := range out {
		if i > 0 && c.compare.Compare(out[i-1], item) == 0 {
			continue
		}
		deduped = append(deduped, item)
	}
	return deduped, nil
}

func (c *SetCoercer) Traverse(value any, v Visitor) error {
	items := value.([]any)
	if err := v.EnterContainer(ContainerSet, len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := c.elem.Traverse(item, v); err != nil {
			return err
		}
	}
	return v.LeaveContainer(ContainerSet)
}

func (c *SetCoercer) CanProduce(kinds ...ElementKind) bool {
	return c.elem.CanProduce(kinds...)
}

// MapCoercer coerces raw mappings into []Pair. RawMap input preserves its
// insertion order; plain Go maps carry no order, so their entries are
// ordered by raw key string to stay deterministic.
type MapCoercer struct {
	key   TypeCoercer
	value TypeCoercer
}

// NewMapCoercer builds a map coercer over key and value element coercers.
func NewMapCoercer(key, value TypeCoercer) *MapCoercer {
	return &MapCoercer{key: key, value: value}
}

func (c *MapCoercer) Name() string {
	return fmt.Sprintf("map<%s, %s>", c.key.Name(), c.value.Name())
}

func (c *MapCoercer) Coerce(raw any) (any, error) {
	entries, err := rawEntries(raw, c.Name())
	if err != nil {
		return nil, err
	}
	return c.coerceEntries(raw, entries)
}

func (c *MapCoercer) coerceEntries(raw any, entries []RawEntry) ([]Pair, error) {
	out := make([]Pair, 0, len(entries))
	for _, entry := range entries {
		k, err := c.key.Coerce(entry.Key)
		if err != nil {
			return nil, elementFailure(raw, c.Name(),
				fmt.Errorf("key %v: %w", entry.Key, err))
		}
		val, err := c.value.Coerce(entry.Value)
		if err != nil {
			return nil, elementFailure(raw, c.Name(),
				fmt.Errorf("value for key %v: %w", entry.Key, err))
		}
		out = append(out, Pair{Key: k, Value: val})
	}
	return out, nil
}

func (c *MapCoercer) Traverse(value any, v Visitor) error {
	return traversePairs(value.([]Pair), ContainerMap, c.key, c.value, v)
}

func (c *MapCoercer) CanProduce(kinds ...ElementKind) bool {
	return c.key.CanProduce(kinds...) || c.value.CanProduce(kinds...)
}

// SortedMapCoercer coerces raw mappings into []Pair sorted by coerced key.
// Iteration order is always ascending key order regardless of insertion
// order; this canonical order is what keeps fingerprints stable. The key
// coercer must implement Ordered.
type SortedMapCoercer struct {
	inner   *MapCoercer
	compare Ordered
}

// NewSortedMapCoercer builds a sorted-map coercer over key and value element
// coercers. It fails if key's output type does not support a total order.
func NewSortedMapCoercer(key, value TypeCoercer) (*SortedMapCoercer, error) {
	ord, ok := key.(Ordered)
	if !ok {
		return nil, fmt.Errorf("sorted map key type %s does not support ordering", key.Name())
	}
	return &SortedMapCoercer{inner: NewMapCoercer(key, value), compare: ord}, nil
}

func (c *SortedMapCoercer) Name() string {
	return fmt.Sprintf("sorted_map<%s, %s>", c.inner.key.Name(), c.inner.value.Name())
}

func (c *SortedMapCoercer) Coerce(raw any) (any, error) {
	entries, err := rawEntries(raw, c.Name())
	if err != nil {
		return nil, err
	}
	pairs, err := c.inner.coerceEntries(raw, entries)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return c.compare.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	for i := 1; i < len(pairs); i++ {
		if c.compare.Compare(pairs[i-1].Key, pairs[i].Key) == 0 {
			return nil, elementFailure(raw, c.Name(),
				fmt.Errorf("duplicate key %v", pairs[i].Key))
		}
	}
	return pairs, nil
}

func (c *SortedMapCoercer) Traverse(value any, v Visitor) error {
	return traversePairs(value.([]Pair), ContainerSortedMap, c.inner.key, c.inner.value, v)
}

func (c *SortedMapCoercer) CanProduce(kinds ...ElementKind) bool {
	return c.inner.CanProduce(kinds...)
}

func traversePairs(pairs []Pair, kind ContainerKind, key, value TypeCoercer, v Visitor) error {
	if err := v.EnterContainer(kind, len(pairs)); err != nil {
		return err
	}
	for _, pair := range pairs {
		if err := key.Traverse(pair.Key, v); err != nil {
			return err
		}
		if err := value.Traverse(pair.Value, v); err != nil {
			return err
		}
	}
	return v.LeaveContainer(kind)
}

// rawEntries normalizes the accepted raw mapping shapes into an entry list.
func rawEntries(raw any, expected string) ([]RawEntry, error) {
	switch m := raw.(type) {
	case *RawMap:
		return m.Entries(), nil
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return strings.Compare(keys[i], keys[j]) < 0 })
		entries := make([]RawEntry, 0, len(m))
		for _, k := range keys {
			entries = append(entries, RawEntry{Key: k, Value: m[k]})
		}
		return entries, nil
	default:
		return nil, mismatch(raw, expected)
	}
}
