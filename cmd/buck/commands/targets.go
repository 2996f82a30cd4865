package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/page-bbbbb-hhhhh/buck/pkg/hashing"
	"github.com/page-bbbbb-hhhhh/buck/pkg/keys"
	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
	"github.com/page-bbbbb-hhhhh/buck/pkg/telemetry"
)

// targetRow is one line of targets output.
type targetRow struct {
	Target  string `json:"target" yaml:"target"`
	Type    string `json:"type" yaml:"type"`
	RuleKey string `json:"ruleKey,omitempty" yaml:"ruleKey,omitempty"`
}

func newTargetsCommand() *cobra.Command {
	var (
		showRuleKeys bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "targets [package]",
		Short: "List targets declared in a package's build file",
		Long: `List the targets one package's build file declares, with their rule
types and, optionally, their rule keys.`,
		Example: `  # List targets of the root package
  buck targets

  # List targets of //lib with their rule keys
  buck targets lib --show-rulekeys

  # Machine output
  buck targets lib -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg := ""
			if len(args) > 0 {
				pkg = args[0]
			}

			env, err := setupEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			nodes, resolver, err := env.loadPackage(ctx, pkg)
			if err != nil {
				env.log.Error(err, "loading package")
				return err
			}

			rows := make([]targetRow, 0, len(nodes))
			for _, node := range nodes {
				rows = append(rows, targetRow{Target: node.Target().String(), Type: node.Type()})
			}

			if showRuleKeys {
				computed, err := env.computeRuleKeys(ctx, resolver)
				if err != nil {
					return err
				}
				for i := range rows {
					rows[i].RuleKey = computed[rows[i].Target].String()
				}
			}

			format := output
			if jsonOutput {
				format = "json"
			}
			return renderRows(rows, format)
		},
	}

	cmd.Flags().BoolVar(&showRuleKeys, "show-rulekeys", false, "compute and print rule keys")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, yaml)")

	return cmd
}

// computeRuleKeys keys every registered rule under one traced span.
func (e *toolEnv) computeRuleKeys(ctx context.Context, resolver *rules.Resolver) (map[string]keys.RuleKey, error) {
	tracer, err := telemetry.NewTracer(e.cfg.Telemetry.Tracing, e.cfg.Telemetry.ServiceName, e.cfg.Telemetry.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(ctx); err != nil {
			e.log.Error(err, "shutting down tracer")
		}
	}()

	hasher, cleanup, err := e.newHasher(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if e.cfg.Watcher.Enabled {
		watcher, err := hashing.NewWatcher(e.cfg.Project.Root, hasher, e.log.Zerolog())
		if err != nil {
			return nil, fmt.Errorf("starting file watcher: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	factory, err := keys.NewDefaultRuleKeyFactory(keys.FactoryConfig{
		Seed:    e.cfg.Keying.Seed,
		Hasher:  hasher,
		Finder:  resolver,
		Logger:  e.log,
		Metrics: e.metrics,
	})
	if err != nil {
		return nil, err
	}

	spanCtx, span := tracer.Start(ctx, "rulekeys.build_all")
	defer span.End()

	computed, err := keys.BuildAll(spanCtx, factory, resolver.All(), e.cfg.EffectiveParallelism())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("computing rule keys: %w", err)
	}
	return computed, nil
}

func renderRows(rows []targetRow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(rows)
	case "text":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, row := range rows {
			if row.RuleKey != "" {
				fmt.Fprintf(w, "%s\t%s\t%s\n", row.Target, row.Type, row.RuleKey)
			} else {
				fmt.Fprintf(w, "%s\t%s\n", row.Target, row.Type)
			}
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
