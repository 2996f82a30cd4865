package coercer

import (
	"fmt"
	gopath "path"
	"strings"

	"github.com/page-bbbbb-hhhhh/buck/pkg/model"
)

// PathCoercer coerces raw strings into project-relative, forward-slash file
// paths. Absolute paths and paths escaping the project root are rejected.
type PathCoercer struct{}

// NewPathCoercer returns the path coercer.
func NewPathCoercer() PathCoercer { return PathCoercer{} }

func (PathCoercer) Name() string { return "path" }

func (c PathCoercer) Coerce(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	cleaned, err := cleanRelPath(s)
	if err != nil {
		return nil, elementFailure(raw, c.Name(), err)
	}
	return cleaned, nil
}

func (PathCoercer) Traverse(value any, v Visitor) error {
	return v.VisitPath(value.(string))
}

func (PathCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindPath)
}

func (PathCoercer) Compare(a, b any) int {
	return strings.Compare(a.(string), b.(string))
}

// SourcePathCoercer coerces raw strings into source paths. A string shaped
// like a target label ("//pkg:name") becomes a TargetSourcePath referencing
// that rule's output; anything else must be a valid project-relative path and
// becomes a PathSourcePath.
type SourcePathCoercer struct{}

// NewSourcePathCoercer returns the source-path coercer.
func NewSourcePathCoercer() SourcePathCoercer { return SourcePathCoercer{} }

func (SourcePathCoercer) Name() string { return "source_path" }

func (c SourcePathCoercer) Coerce(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, mismatch(raw, c.Name())
	}
	if model.IsTargetLabel(s) {
		target, err := model.ParseTarget(s)
		if err != nil {
			return nil, elementFailure(raw, c.Name(), err)
		}
		return model.TargetSourcePath{Target: target}, nil
	}
	cleaned, err := cleanRelPath(s)
	if err != nil {
		return nil, elementFailure(raw, c.Name(), err)
	}
	return model.PathSourcePath{Path: cleaned}, nil
}

func (SourcePathCoercer) Traverse(value any, v Visitor) error {
	return v.VisitSourcePath(value.(model.SourcePath))
}

func (SourcePathCoercer) CanProduce(kinds ...ElementKind) bool {
	return containsKind(kinds, KindSourcePath)
}

func (SourcePathCoercer) Compare(a, b any) int {
	return strings.Compare(a.(model.SourcePath).String(), b.(model.SourcePath).String())
}

// cleanRelPath validates and normalizes a project-relative path.
func cleanRelPath(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.HasPrefix(s, "/") {
		return "", fmt.Errorf("path %q is absolute; paths must be project-relative", s)
	}
	cleaned := gopath.Clean(s)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("path %q escapes the project root", s)
	}
	return cleaned, nil
}
