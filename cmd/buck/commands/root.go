// Package commands implements the buck CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/page-bbbbb-hhhhh/buck/pkg/config"
	"github.com/page-bbbbb-hhhhh/buck/pkg/hashing"
	"github.com/page-bbbbb-hhhhh/buck/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "buck",
		Short: "Buck - attribute coercion and rule-key fingerprinting",
		Long: `Buck evaluates Starlark build files into typed rule graphs and computes
referentially transparent rule keys over them.

Features:
  - Starlark build files with typed attribute coercion
  - Content-addressed rule keys with per-build memoization
  - Persistent sqlite file-hash cache with filesystem invalidation
  - Typed configs via CUE`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newTargetsCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// toolEnv is the shared per-invocation runtime: resolved config, logger and
// metrics. Commands build the rest of their collaborators from it.
type toolEnv struct {
	cfg     config.Config
	log     *telemetry.Logger
	metrics *telemetry.Metrics
}

func setupEnv() (*toolEnv, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		cfg.Project.Root = cwd
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	log, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	metrics, err := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	return &toolEnv{cfg: cfg, log: log, metrics: metrics}, nil
}

// newHasher builds the file-hash pipeline: sha256 over the project root,
// optionally backed by the persistent store, memoized in front.
func (e *toolEnv) newHasher(ctx context.Context) (*hashing.MemoHasher, func(), error) {
	var inner hashing.FileHasher = hashing.NewSha256Hasher(e.cfg.Project.Root)
	cleanup := func() {}

	if e.cfg.HashStore.Enabled {
		store, err := hashing.NewStore(hashing.StoreConfig{Path: e.cfg.HashStore.Path})
		if err != nil {
			return nil, nil, fmt.Errorf("opening hash store: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrating hash store: %w", err)
		}
		inner = hashing.NewStoreHasher(e.cfg.Project.Root, inner, store)
		cleanup = func() {
			if err := store.Close(); err != nil {
				e.log.Error(err, "closing hash store")
			}
		}
	}

	return hashing.NewMemoHasher(inner), cleanup, nil
}
