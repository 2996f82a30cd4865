package rules

import (
	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// RuleKeySink accumulates named field contributions into a fingerprint in
// the order the caller supplies them. Callers must supply fields in a
// stable, declared order; the sink does not reorder.
//
// Every entry is written with a type discriminator ahead of its payload, so
// entries of different kinds never collide even when their bytes agree.
type RuleKeySink interface {
	AddBool(name string, v bool) error
	AddInt(name string, v int64) error
	AddString(name, v string) error

	// AddPath folds the content digest of a project-relative file.
	AddPath(name, path string) error

	// AddSourcePath folds either a file's content digest or, for target
	// source paths, the producing rule's fingerprint.
	AddSourcePath(name string, sp model.SourcePath) error

	// AddAppendable folds the appendable's own fingerprint.
	AddAppendable(name string, a Appendable) error

	// AddRule folds the referenced rule's fingerprint.
	AddRule(name string, rule BuildRule) error

	// AddField folds an arbitrary coerced value by walking it with its
	// coercer's traversal.
	AddField(name string, c coercer.TypeCoercer, typed any) error
}
