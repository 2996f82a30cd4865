package keys

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/page-bbbbb-hhhhh/buck/pkg/hashing"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
	"github.com/page-bbbbb-hhhhh/buck/pkg/telemetry"
)

// RuleKeyFactory produces rule keys.
type RuleKeyFactory interface {
	Build(rule rules.BuildRule) (RuleKey, error)
}

// FactoryConfig configures a DefaultRuleKeyFactory.
type FactoryConfig struct {
	// Seed is folded into every key; bumping it invalidates all caches.
	Seed uint64

	// Hasher is the file-hash collaborator. Required.
	Hasher hashing.FileHasher

	// Finder resolves target source paths to the producing rule. Required.
	Finder rules.RuleFinder

	// Extractor supplies each rule's ordered fields. Defaults to
	// rules.DefaultFieldExtractor.
	Extractor rules.FieldExtractor

	// Logger and Metrics are optional instrumentation.
	Logger  *telemetry.Logger
	Metrics *telemetry.Metrics
}

// DefaultRuleKeyFactory computes rule keys with per-build memoization: each
// distinct rule (by target identity) and each distinct appendable (by
// handle) is fingerprinted at most once per factory lifetime. The factory is
// safe for concurrent use across a parallel build; the supplied graph must
// be acyclic, which is the caller's responsibility.
type DefaultRuleKeyFactory struct {
	buildID   string
	seed      uint64
	hasher    hashing.FileHasher
	finder    rules.RuleFinder
	extractor rules.FieldExtractor
	log       *telemetry.Logger
	metrics   *telemetry.Metrics

	ruleCache       *keyCache
	appendableCache *keyCache
}

// NewDefaultRuleKeyFactory builds a factory for one build invocation.
func NewDefaultRuleKeyFactory(cfg FactoryConfig) (*DefaultRuleKeyFactory, error) {
	if cfg.Hasher == nil {
		return nil, fmt.Errorf("file hasher is required")
	}
	if cfg.Finder == nil {
		return nil, fmt.Errorf("rule finder is required")
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = rules.DefaultFieldExtractor{}
	}

	f := &DefaultRuleKeyFactory{
		buildID:         uuid.NewString(),
		seed:            cfg.Seed,
		hasher:          cfg.Hasher,
		finder:          cfg.Finder,
		extractor:       extractor,
		log:             cfg.Logger,
		metrics:         cfg.Metrics,
		ruleCache:       newKeyCache(),
		appendableCache: newKeyCache(),
	}
	if f.log != nil {
		f.log = f.log.WithComponent("rulekey").WithBuildID(f.buildID)
	}
	return f, nil
}

// BuildID identifies this factory's build invocation.
func (f *DefaultRuleKeyFactory) BuildID() string {
	return f.buildID
}

// Build implements RuleKeyFactory. Correctness under recursion relies on the
// dependency graph being acyclic; a cycle would recurse without bound.
func (f *DefaultRuleKeyFactory) Build(rule rules.BuildRule) (RuleKey, error) {
	label := rule.Target().String()
	return f.ruleCache.getOrCompute(label,
		func() (RuleKey, error) { return f.buildUncached(rule) },
		func(hit bool) {
			if f.metrics != nil {
				f.metrics.RecordRuleCacheLookup(hit)
			}
		})
}

func (f *DefaultRuleKeyFactory) buildUncached(rule rules.BuildRule) (RuleKey, error) {
	start := time.Now()
	label := rule.Target().String()

	b := f.newBuilder()
	if err := b.AddSeed(f.seed); err != nil {
		return RuleKey{}, err
	}
	if err := b.AddString("buck.target", label); err != nil {
		return RuleKey{}, err
	}
	if err := b.AddString("buck.type", rule.Type()); err != nil {
		return RuleKey{}, err
	}

	fields, err := f.extractor.Fields(rule)
	if err != nil {
		return RuleKey{}, fmt.Errorf("extracting fields of %s: %w", label, err)
	}
	for _, field := range fields {
		if err := f.addField(b, field); err != nil {
			return RuleKey{}, fmt.Errorf("keying %s.%s: %w", label, field.Name, err)
		}
	}

	// Deps are folded explicitly even when field traversal already
	// surfaced them; a dependency must influence the key even if no field
	// mentions it.
	if err := b.AddRuleList("buck.declared_deps", rule.DeclaredDeps()); err != nil {
		return RuleKey{}, fmt.Errorf("keying %s declared deps: %w", label, err)
	}
	if err := b.AddRuleList("buck.extra_deps", rule.ExtraDeps()); err != nil {
		return RuleKey{}, fmt.Errorf("keying %s extra deps: %w", label, err)
	}

	key, err := b.Build()
	if err != nil {
		return RuleKey{}, err
	}

	if f.metrics != nil {
		f.metrics.RecordRuleKeyComputed(time.Since(start).Seconds())
	}
	if f.log != nil {
		f.log.WithTarget(label).Debugf("rule key %s", key)
	}
	return key, nil
}

func (f *DefaultRuleKeyFactory) addField(b *Builder, field rules.Field) error {
	switch {
	case field.Appendable != nil:
		return b.AddAppendable(field.Name, field.Appendable)
	case field.Rule != nil:
		return b.AddRule(field.Name, field.Rule)
	case field.Coercer != nil:
		return b.AddField(field.Name, field.Coercer, field.Value)
	default:
		return fmt.Errorf("field %s has no payload", field.Name)
	}
}

// appendableKey fingerprints an appendable through the appendable cache, so
// a shared instance is hashed exactly once per factory.
func (f *DefaultRuleKeyFactory) appendableKey(a rules.Appendable) (RuleKey, error) {
	id := strconv.FormatUint(a.AppendableID(), 10)
	return f.appendableCache.getOrCompute(id,
		func() (RuleKey, error) {
			b := f.newBuilder()
			if err := b.AddSeed(f.seed); err != nil {
				return RuleKey{}, err
			}
			if err := a.AppendToRuleKey(b); err != nil {
				return RuleKey{}, err
			}
			return b.Build()
		},
		func(hit bool) {
			if f.metrics != nil {
				f.metrics.RecordAppendableCacheLookup(hit)
			}
		})
}

// resolveSource maps a source path to either the producing rule's key or a
// literal file's content digest.
func (f *DefaultRuleKeyFactory) resolveSource(sp model.SourcePath) (SourceResolution, error) {
	switch p := sp.(type) {
	case model.TargetSourcePath:
		rule, ok := f.finder.FindRule(p.Target)
		if !ok {
			return SourceResolution{}, fmt.Errorf("no rule produces %s", p.Target)
		}
		key, err := f.Build(rule)
		if err != nil {
			return SourceResolution{}, err
		}
		return SourceResolution{Key: &key}, nil
	case model.PathSourcePath:
		d, err := f.hasher.Hash(p.Path)
		if err != nil {
			return SourceResolution{}, err
		}
		if f.metrics != nil {
			f.metrics.RecordFileHashed()
		}
		return SourceResolution{Digest: &d}, nil
	default:
		return SourceResolution{}, fmt.Errorf("unknown source path type %T", sp)
	}
}

func (f *DefaultRuleKeyFactory) newBuilder() *Builder {
	return NewBuilder(f.hasher, f.resolveSource, f.Build, f.appendableKey)
}

// CachedRuleKeys reports how many rule keys this factory has memoized.
func (f *DefaultRuleKeyFactory) CachedRuleKeys() int {
	return f.ruleCache.len()
}

// CachedAppendableKeys reports how many appendable keys are memoized.
func (f *DefaultRuleKeyFactory) CachedAppendableKeys() int {
	return f.appendableCache.len()
}
