package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/page-bbbbb-hhhhh/buck/pkg/buildfile"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

// evalPackage evaluates one package's build file into raw declarations.
func (e *toolEnv) evalPackage(ctx context.Context, pkg string) ([]buildfile.RawTarget, error) {
	path := filepath.Join(e.cfg.Project.Root, filepath.FromSlash(pkg), e.cfg.Project.BuildFileName)
	evaluator := buildfile.NewEvaluator(
		buildfile.WithCell(e.cfg.Project.Cell),
		buildfile.WithLogger(e.log),
	)
	return evaluator.EvalFile(ctx, pkg, path)
}

// loadPackage evaluates, coerces and wires one package into a resolvable
// rule graph. Any declaration failure aborts the load; the validate command
// offers the lenient per-target path instead.
func (e *toolEnv) loadPackage(ctx context.Context, pkg string) ([]*rules.RuleNode, *rules.Resolver, error) {
	raw, err := e.evalPackage(ctx, pkg)
	if err != nil {
		return nil, nil, err
	}

	registry, err := rules.NewSchemaRegistry()
	if err != nil {
		return nil, nil, err
	}

	resolver := rules.NewResolver()
	nodes := make([]*rules.RuleNode, 0, len(raw))
	for _, decl := range raw {
		node, err := registry.Instantiate(decl.Target, decl.Type, decl.Attrs)
		if err != nil {
			return nil, nil, err
		}
		if err := resolver.Register(node); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, node)
	}

	for _, node := range nodes {
		if err := rules.WireDeclaredDeps(node, resolver); err != nil {
			return nil, nil, fmt.Errorf("wiring dependencies: %w", err)
		}
	}
	return nodes, resolver, nil
}
