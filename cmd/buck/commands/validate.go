package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/page-bbbbb-hhhhh/buck/pkg/rules"
)

// validationResult is one target's validation outcome.
type validationResult struct {
	Target string `json:"target"`
	Type   string `json:"type"`
	Error  string `json:"error,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [package]",
		Short: "Coerce every target's attributes and report errors",
		Long: `Validate coerces every attribute of every target declared in a package's
build file. A coercion failure is local to one attribute of one target:
remaining targets are still checked, and every failure is reported with the
target and attribute it occurred in.`,
		Example: `  # Validate the root package
  buck validate

  # Validate //lib
  buck validate lib`,
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

			raw, err := env.evalPackage(cmd.Context(), pkg)
			if err != nil {
				env.log.Error(err, "evaluating build file")
				return err
			}

			registry, err := rules.NewSchemaRegistry()
			if err != nil {
				return err
			}

			resolver := rules.NewResolver()
			results := make([]validationResult, 0, len(raw))
			var nodes []*rules.RuleNode
			failures := 0
			for _, decl := range raw {
				res := validationResult{Target: decl.Target.String(), Type: decl.Type}
				node, err := registry.Instantiate(decl.Target, decl.Type, decl.Attrs)
				if err != nil {
					res.Error = err.Error()
					failures++
					env.metrics.RecordCoerceFailure(decl.Type)
				} else if err := resolver.Register(node); err != nil {
					res.Error = err.Error()
					failures++
				} else {
					nodes = append(nodes, node)
				}
				results = append(results, res)
			}

			// Reference resolution failures are reported per target too.
			for _, node := range nodes {
				if err := rules.WireDeclaredDeps(node, resolver); err != nil {
					label := node.Target().String()
					for i := range results {
						if results[i].Target == label && results[i].Error == "" {
							results[i].Error = err.Error()
							failures++
						}
					}
				}
			}

			if err := renderValidation(results); err != nil {
				return err
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d targets failed validation", failures, len(results))
			}
			return nil
		},
	}

	return cmd
}

func renderValidation(results []validationResult) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for _, res := range results {
		if res.Error == "" {
			fmt.Printf("ok    %s (%s)\n", res.Target, res.Type)
		} else {
			fmt.Printf("error %s (%s): %s\n", res.Target, res.Type, res.Error)
		}
	}
	return nil
}
