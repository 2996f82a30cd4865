package keys

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/hashing"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

// ErrBuilderFinalized is returned when a Builder is used after Build.
var ErrBuilderFinalized = errors.New("rule key builder already finalized")

// Entry type discriminators. Every value written into the rolling digest is
// preceded by one of these bytes so that entries of different kinds never
// collide: boolean true and the string "true" hash differently, as do
// ["ab"] and ["a","b"].
const (
	tagFieldName byte = 0x01
	tagBool      byte = 0x02
	tagInt       byte = 0x03
	tagString    byte = 0x04
	tagPath      byte = 0x05
	tagSource    byte = 0x06
	tagRuleKey   byte = 0x07
	tagAppendKey byte = 0x08
	tagSeed      byte = 0x09
	tagOpen      byte = 0x10
	tagClose     byte = 0x11
)

// SourceResolution is the outcome of resolving a source path: exactly one of
// Digest (literal file) or Key (producing rule) is set.
type SourceResolution struct {
	Digest *hashing.Digest
	Key    *RuleKey
}

// RuleResolver obtains the fingerprint of a referenced rule.
type RuleResolver func(rule rules.BuildRule) (RuleKey, error)

// AppendableResolver obtains the fingerprint of an appendable.
type AppendableResolver func(a rules.Appendable) (RuleKey, error)

// SourceResolver resolves a source path to a content digest or a rule key.
type SourceResolver func(sp model.SourcePath) (SourceResolution, error)

// Builder is the fingerprint sink. It accumulates field contributions into a
// rolling order-sensitive digest and resolves references through the three
// resolver functions injected at construction. A Builder is exclusively
// owned by the goroutine computing one fingerprint and must not be reused
// after Build.
type Builder struct {
	digest hash.Hash

	hasher            hashing.FileHasher
	resolveSource     SourceResolver
	resolveRule       RuleResolver
	resolveAppendable AppendableResolver

	finalized bool
}

// NewBuilder constructs a sink over the given file hasher and resolvers.
func NewBuilder(
	hasher hashing.FileHasher,
	resolveSource SourceResolver,
	resolveRule RuleResolver,
	resolveAppendable AppendableResolver,
) *Builder {
	return &Builder{
		digest:            sha256.New(),
		hasher:            hasher,
		resolveSource:     resolveSource,
		resolveRule:       resolveRule,
		resolveAppendable: resolveAppendable,
	}
}

func (b *Builder) write(tag byte, payload []byte) {
	var frame [9]byte
	frame[0] = tag
	binary.BigEndian.PutUint64(frame[1:], uint64(len(payload)))
	b.digest.Write(frame[:])
	b.digest.Write(payload)
}

func (b *Builder) writeFieldName(name string) {
	b.write(tagFieldName, []byte(name))
}

// AddSeed folds the factory seed. Changing the seed changes every key,
// which force-invalidates all cached outputs.
func (b *Builder) AddSeed(seed uint64) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	b.write(tagSeed, buf[:])
	return nil
}

// AddBool implements rules.RuleKeySink.
func (b *Builder) AddBool(name string, v bool) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.VisitBool(v)
}

// AddInt implements rules.RuleKeySink.
func (b *Builder) AddInt(name string, v int64) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.VisitInt(v)
}

// AddString implements rules.RuleKeySink.
func (b *Builder) AddString(name, v string) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.VisitString(v)
}

// AddPath implements rules.RuleKeySink.
func (b *Builder) AddPath(name, path string) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.VisitPath(path)
}

// AddSourcePath implements rules.RuleKeySink.
func (b *Builder) AddSourcePath(name string, sp model.SourcePath) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.VisitSourcePath(sp)
}

// AddAppendable implements rules.RuleKeySink.
func (b *Builder) AddAppendable(name string, a rules.Appendable) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	key, err := b.resolveAppendable(a)
	if err != nil {
		return err
	}
	b.write(tagAppendKey, key[:])
	return nil
}

// AddRule implements rules.RuleKeySink.
func (b *Builder) AddRule(name string, rule rules.BuildRule) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return b.foldRule(rule)
}

// AddField implements rules.RuleKeySink: the coerced value is walked by its
// coercer's traversal, with each visited element written through this
// builder's Visitor methods.
func (b *Builder) AddField(name string, c coercer.TypeCoercer, typed any) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	return c.Traverse(typed, b)
}

// AddRuleList folds an ordered dependency list under name.
func (b *Builder) AddRuleList(name string, deps []rules.BuildRule) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	b.writeFieldName(name)
	if err := b.EnterContainer(coercer.ContainerList, len(deps)); err != nil {
		return err
	}
	for _, dep := range deps {
		if err := b.foldRule(dep); err != nil {
			return err
		}
	}
	return b.LeaveContainer(coercer.ContainerList)
}

func (b *Builder) foldRule(rule rules.BuildRule) error {
	key, err := b.resolveRule(rule)
	if err != nil {
		return err
	}
	b.write(tagRuleKey, key[:])
	return nil
}

// VisitBool implements coercer.Visitor.
func (b *Builder) VisitBool(v bool) error {
	payload := []byte{0}
	if v {
		payload[0] = 1
	}
	b.write(tagBool, payload)
	return nil
}

// VisitInt implements coercer.Visitor.
func (b *Builder) VisitInt(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	b.write(tagInt, buf[:])
	return nil
}

// VisitString implements coercer.Visitor.
func (b *Builder) VisitString(v string) error {
	b.write(tagString, []byte(v))
	return nil
}

// VisitPath implements coercer.Visitor: the path is folded together with
// its content digest, so both renames and edits change the key.
func (b *Builder) VisitPath(path string) error {
	d, err := b.hasher.Hash(path)
	if err != nil {
		return fmt.Errorf("resolving path %s: %w", path, err)
	}
	payload := make([]byte, 0, len(path)+len(d))
	payload = append(payload, path...)
	payload = append(payload, d[:]...)
	b.write(tagPath, payload)
	return nil
}

// VisitSourcePath implements coercer.Visitor. Target source paths fold the
// producing rule's key rather than its output bytes; literal paths fold
// their content digest.
func (b *Builder) VisitSourcePath(sp model.SourcePath) error {
	res, err := b.resolveSource(sp)
	if err != nil {
		return fmt.Errorf("resolving source %s: %w", sp, err)
	}

	name := sp.String()
	switch {
	case res.Key != nil:
		payload := make([]byte, 0, len(name)+len(res.Key))
		payload = append(payload, name...)
		payload = append(payload, res.Key[:]...)
		b.write(tagSource, payload)
	case res.Digest != nil:
		payload := make([]byte, 0, len(name)+len(res.Digest))
		payload = append(payload, name...)
		payload = append(payload, res.Digest[:]...)
		b.write(tagSource, payload)
	default:
		return fmt.Errorf("resolving source %s: empty resolution", sp)
	}
	return nil
}

// EnterContainer implements coercer.Visitor.
func (b *Builder) EnterContainer(kind coercer.ContainerKind, length int) error {
	var buf [9]byte
	buf[0] = byte(kind)
	binary.BigEndian.PutUint64(buf[1:], uint64(length))
	b.write(tagOpen, buf[:])
	return nil
}

// LeaveContainer implements coercer.Visitor.
func (b *Builder) LeaveContainer(kind coercer.ContainerKind) error {
	b.write(tagClose, []byte{byte(kind)})
	return nil
}

// Build finalizes the accumulated state into a RuleKey. The builder cannot
// be used afterwards.
func (b *Builder) Build() (RuleKey, error) {
	if b.finalized {
		return RuleKey{}, ErrBuilderFinalized
	}
	b.finalized = true

	var key RuleKey
	copy(key[:], b.digest.Sum(nil))
	return key, nil
}
