// Package buildfile evaluates Starlark build files into raw target
// declarations. It is the ingestion boundary: everything it produces is
// untyped raw attribute data, and the coercion layer downstream owns turning
// that into typed values. No fingerprinting logic lives here.
package buildfile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/page-bbbbb-hhhhh/buck/pkg/coercer"
	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
	"github.com/page-bbbbb-hhhhh/buck/pkg/telemetry"
)

// RawTarget is one rule declaration as written in a build file: a name, a
// rule type, and the remaining keyword arguments as raw attribute data in
// declaration order.
type RawTarget struct {
	Target model.BuildTarget
	Type   string
	Attrs  *coercer.RawMap
}

// Evaluator executes build files. Scripts run with a bounded wall clock so
// a runaway loop in a build file cannot hang ingestion.
type Evaluator struct {
	cell    string
	timeout time.Duration
	log     *telemetry.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCell sets the cell name stamped on every parsed target.
func WithCell(cell string) Option {
	return func(e *Evaluator) { e.cell = cell }
}

// WithTimeout bounds a single file's evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log *telemetry.Logger) Option {
	return func(e *Evaluator) { e.log = log.WithComponent("buildfile") }
}

// NewEvaluator creates an evaluator with a 30s default timeout.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvalFile evaluates the build file at path, declaring targets into the
// given package. Targets are returned in declaration order.
func (e *Evaluator) EvalFile(ctx context.Context, pkg, path string) ([]RawTarget, error) {
	return e.eval(ctx, pkg, path, nil)
}

// EvalSource evaluates build file source held in memory, for tests and
// tooling. filename only labels error messages.
func (e *Evaluator) EvalSource(ctx context.Context, pkg, filename, src string) ([]RawTarget, error) {
	return e.eval(ctx, pkg, filename, src)
}

func (e *Evaluator) eval(ctx context.Context, pkg, filename string, src any) ([]RawTarget, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		targets []RawTarget
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		targets, err := e.evalSync(pkg, filename, src)
		ch <- result{targets, err}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("evaluating %s: %w", filename, evalCtx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if e.log != nil {
			e.log.Debugf("evaluated %s: %d targets", filename, len(res.targets))
		}
		return res.targets, nil
	}
}

func (e *Evaluator) evalSync(pkg, filename string, src any) ([]RawTarget, error) {
	collector := &targetCollector{
		cell: e.cell,
		pkg:  pkg,
		seen: make(map[string]struct{}),
	}

	thread := &starlark.Thread{
		Name: "buildfile",
		Print: func(_ *starlark.Thread, msg string) {
			if e.log != nil {
				e.log.Debugf("%s: %s", filename, msg)
			}
		},
	}

	predeclared := starlark.StringDict{
		"struct":       starlarkstruct.Default,
		"rule":         starlark.NewBuiltin("rule", collector.rule),
		"package_name": starlark.NewBuiltin("package_name", collector.packageName),
	}

	if _, err := starlark.ExecFile(thread, filename, src, predeclared); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", filename, err)
	}
	return collector.targets, nil
}

// targetCollector accumulates rule() calls made during one file's execution.
type targetCollector struct {
	cell    string
	pkg     string
	targets []RawTarget
	seen    map[string]struct{}
}

// rule implements the rule(name=..., type=..., **attrs) builtin. name and
// type are required keyword arguments; every other keyword becomes a raw
// attribute, recorded in the order written.
func (c *targetCollector) rule(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("rule: only keyword arguments are allowed")
	}

	var name, ruleType string
	attrs := coercer.NewRawMap()
	for _, kv := range kwargs {
		key, ok := kv[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("rule: keyword must be a string")
		}
		switch string(key) {
		case "name":
			s, ok := kv[1].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("rule: name must be a string, got %s", kv[1].Type())
			}
			name = string(s)
		case "type":
			s, ok := kv[1].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("rule: type must be a string, got %s", kv[1].Type())
			}
			ruleType = string(s)
		default:
			raw, err := fromStarlark(kv[1])
			if err != nil {
				return nil, fmt.Errorf("rule: attribute %s: %w", key, err)
			}
			attrs.Set(string(key), raw)
		}
	}

	if name == "" {
		return nil, fmt.Errorf("rule: name is required")
	}
	if ruleType == "" {
		return nil, fmt.Errorf("rule %s: type is required", name)
	}
	if _, dup := c.seen[name]; dup {
		return nil, fmt.Errorf("rule %s: duplicate target name in package //%s", name, c.pkg)
	}
	c.seen[name] = struct{}{}

	c.targets = append(c.targets, RawTarget{
		Target: model.BuildTarget{Cell: c.cell, Package: c.pkg, Name: name},
		Type:   ruleType,
		Attrs:  attrs,
	})
	return starlark.None, nil
}

func (c *targetCollector) packageName(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.String(c.pkg), nil
}

// fromStarlark converts a Starlark attribute value to raw attribute data.
// Dicts keep their insertion order through RawMap; structs have no order, so
// their fields are sorted by name.
func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, item := range val {
			converted, err := fromStarlark(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	case *starlark.Dict:
		raw := coercer.NewRawMap()
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			value, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			raw.Set(string(key), value)
		}
		return raw, nil
	case *starlarkstruct.Struct:
		raw := coercer.NewRawMap()
		names := val.AttrNames()
		sort.Strings(names)
		for _, name := range names {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlark(attr)
			if err != nil {
				return nil, err
			}
			raw.Set(name, value)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %s", v.Type())
	}
}
