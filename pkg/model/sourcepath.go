package model

// SourcePath is a symbolic reference to an input: either a literal file
// relative to the project root, or the output of another rule.
type SourcePath interface {
	// String returns a stable textual form used for ordering and display.
	String() string

	sourcePath()
}

// PathSourcePath references a literal file by project-relative path.
type PathSourcePath struct {
	Path string
}

func (p PathSourcePath) String() string { return p.Path }
func (p PathSourcePath) sourcePath()    {}

// TargetSourcePath references the output of the rule identified by Target.
type TargetSourcePath struct {
	Target BuildTarget
}

func (p TargetSourcePath) String() string { return p.Target.String() }
func (p TargetSourcePath) sourcePath()    {}
