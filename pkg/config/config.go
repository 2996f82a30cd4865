// Package config loads tool configuration from CUE files. A loaded file is
// unified against the built-in schema before decoding, so shape errors
// surface as CUE unification failures with file positions rather than as
// zero values deep in the tool.
package config

import (
	"fmt"
	"os"
	"runtime"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"

	"github.com/page-bbbbb-hhhhh/buck/pkg/telemetry"
)

// Config is the tool configuration.
type Config struct {
	// Project is where target labels and source paths resolve from.
	Project ProjectConfig `json:"project"`

	// HashStore configures the persistent file-hash cache.
	HashStore HashStoreConfig `json:"hashStore"`

	// Watcher invalidates cached file hashes on filesystem changes.
	Watcher WatcherConfig `json:"watcher"`

	// Keying configures rule-key computation.
	Keying KeyingConfig `json:"keying"`

	Telemetry telemetry.Config `json:"telemetry"`
}

// ProjectConfig locates the project.
type ProjectConfig struct {
	// Root is the project root directory. All paths in build files are
	// relative to it.
	Root string `json:"root" validate:"required"`

	// Cell names this project in target labels; empty is the default cell.
	Cell string `json:"cell"`

	// BuildFileName is the file evaluated per package.
	BuildFileName string `json:"buildFileName" validate:"required"`
}

// HashStoreConfig configures the sqlite-backed hash cache.
type HashStoreConfig struct {
	Enabled bool `json:"enabled"`

	// Path is the sqlite database file, created on first use.
	Path string `json:"path" validate:"required_if=Enabled true"`
}

// WatcherConfig configures filesystem invalidation.
type WatcherConfig struct {
	Enabled bool `json:"enabled"`
}

// KeyingConfig configures the rule-key factory.
type KeyingConfig struct {
	// Seed is folded into every key. Bumping it invalidates everything.
	Seed uint64 `json:"seed"`

	// Parallelism bounds concurrent key computations; 0 means NumCPU.
	Parallelism int `json:"parallelism" validate:"gte=0"`
}

// schema is unified with every loaded file. Constraints here fail at load
// time with CUE positions; validator tags below catch what CUE cannot
// express about decoded Go values.
const schema = `
#Config: {
	project: {
		root:          string
		cell:          string | *""
		buildFileName: string | *"BUCK"
	}
	hashStore: {
		enabled: bool | *false
		path:    string | *""
	}
	watcher: enabled: bool | *false
	keying: {
		seed:        int & >=0 | *0
		parallelism: int & >=0 | *0
	}
	telemetry: {...}
}
#Config
`

// Default returns the configuration used when no file is given. The project
// root must still be set by the caller.
func Default() Config {
	return Config{
		Project: ProjectConfig{
			BuildFileName: "BUCK",
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads and validates the CUE config file at path.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(string(content), path)
}

// Parse validates CUE config source held in memory. filename only labels
// error messages.
func Parse(src, filename string) (Config, error) {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schema)
	if err := schemaVal.Err(); err != nil {
		return Config{}, fmt.Errorf("compiling config schema: %w", err)
	}

	fileVal := ctx.CompileString(src, cue.Filename(filename))
	if err := fileVal.Err(); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", filename, err)
	}

	unified := schemaVal.Unify(fileVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validating %s: %w", filename, err)
	}

	cfg := Default()
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding %s: %w", filename, err)
	}

	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	return cfg.Telemetry.Validate()
}

// EffectiveParallelism resolves the configured parallelism, defaulting to
// the machine's CPU count.
func (c *Config) EffectiveParallelism() int {
	if c.Keying.Parallelism > 0 {
		return c.Keying.Parallelism
	}
	return runtime.NumCPU()
}
