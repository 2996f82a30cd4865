package rules

import "sync/atomic"

// Appendable is an auxiliary object, not itself a rule, that contributes to
// one or more rules' fingerprints. Each instance is fingerprinted
// independently and at most once per factory, so a shared instance hashes
// once no matter how many rules reference it.
type Appendable interface {
	// AppendableID is a process-unique identity handle assigned at
	// construction. Identity, not structural equality, keys the appendable
	// fingerprint cache.
	AppendableID() uint64

	// AppendToRuleKey pushes the object's fingerprint-relevant data into
	// sink in a stable order.
	AppendToRuleKey(sink RuleKeySink) error
}

var appendableSeq atomic.Uint64

// AppendableBase provides the identity handle. Embed it by value in
// appendable implementations and construct with NewAppendableBase.
type AppendableBase struct {
	id uint64
}

// NewAppendableBase allocates a fresh identity handle.
func NewAppendableBase() AppendableBase {
	return AppendableBase{id: appendableSeq.Add(1)}
}

// AppendableID implements Appendable.
func (b AppendableBase) AppendableID() uint64 { return b.id }
