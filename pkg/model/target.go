// Package model defines the identity types shared by the coercion and
// rule-key layers: build-target labels and source paths.
package model

import (
	"fmt"
	"strings"
)

// BuildTarget identifies a single rule in the dependency graph.
// Its canonical label form is "cell//package/path:name"; the cell prefix is
// empty for targets in the root cell ("//package/path:name").
type BuildTarget struct {
	// Cell is the cell alias, empty for the root cell.
	Cell string

	// Package is the slash-separated package path relative to the cell root.
	Package string

	// Name is the target name within the package.
	Name string
}

// ParseTarget parses a fully-qualified target label.
// Accepted forms: "//pkg/path:name", "cell//pkg/path:name", "//:name".
func ParseTarget(label string) (BuildTarget, error) {
	idx := strings.Index(label, "//")
	if idx < 0 {
		return BuildTarget{}, fmt.Errorf("invalid target %q: missing '//'", label)
	}

	cell := label[:idx]
	rest := label[idx+2:]

	colon := strings.LastIndex(rest, ":")
	if colon < 0 {
		return BuildTarget{}, fmt.Errorf("invalid target %q: missing ':name'", label)
	}

	pkg := rest[:colon]
	name := rest[colon+1:]
	if name == "" {
		return BuildTarget{}, fmt.Errorf("invalid target %q: empty target name", label)
	}
	if strings.HasPrefix(pkg, "/") || strings.HasSuffix(pkg, "/") {
		return BuildTarget{}, fmt.Errorf("invalid target %q: malformed package path", label)
	}
	if strings.Contains(pkg, "//") {
		return BuildTarget{}, fmt.Errorf("invalid target %q: malformed package path", label)
	}

	return BuildTarget{Cell: cell, Package: pkg, Name: name}, nil
}

// IsTargetLabel reports whether s looks like a target label rather than a
// filesystem path. It does not validate the label.
func IsTargetLabel(s string) bool {
	return strings.Contains(s, "//") && strings.Contains(s, ":")
}

// String returns the canonical label form.
func (t BuildTarget) String() string {
	return t.Cell + "//" + t.Package + ":" + t.Name
}

// Compare orders targets lexicographically by their canonical label.
func (t BuildTarget) Compare(o BuildTarget) int {
	return strings.Compare(t.String(), o.String())
}

// Less reports whether t orders before o.
func (t BuildTarget) Less(o BuildTarget) bool {
	return t.Compare(o) < 0
}
