// Package keys computes rule keys: deterministic content fingerprints of
// build rules and their transitive inputs, used to decide whether a rule's
// output can be reused from a cache. A rule's key folds in its own declared
// data, the content digests of the files it reads, and the keys of every
// rule and appendable it depends on, so a downstream key changes exactly
// when something it transitively depends on changes.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// RuleKey is a fixed-length opaque fingerprint. Equality is byte equality.
// RuleKeys are only produced by a finalized Builder and are never mutated.
type RuleKey [sha256.Size]byte

// String returns the lowercase hex form.
func (k RuleKey) String() string {
	return hex.EncodeToString(k[:])
}

// ParseRuleKey parses the hex form produced by String.
func ParseRuleKey(s string) (RuleKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return RuleKey{}, fmt.Errorf("invalid rule key %q: %w", s, err)
	}
	if len(raw) != sha256.Size {
		return RuleKey{}, fmt.Errorf("invalid rule key %q: want %d bytes, got %d", s, sha256.Size, len(raw))
	}
	var k RuleKey
	copy(k[:], raw)
	return k, nil
}
