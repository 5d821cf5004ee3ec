package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/topoplan/internal/core/description"
	"github.com/artpar/topoplan/internal/core/topology"
)

// errStrictWarnings is returned by --strict when the plan has warnings.
var errStrictWarnings = errors.New("plan has warnings")

// sourceOptions select and parse a description file.
type sourceOptions struct {
	compose   bool
	variables map[string]string
}

func (o *sourceOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.compose, "compose", "c", false, "Read the file as docker-compose YAML")
	cmd.Flags().StringToStringVar(&o.variables, "var", nil, "Inject a configuration value for ${NAME} placeholders (NAME=VALUE)")
}

// load reads path ("-" for stdin), parses it and runs the pipeline with
// config variables overlaid by --var values.
func (o *sourceOptions) load(cmd *cobra.Command, root *rootOptions, path string) (*description.Document, *topology.Result, error) {
	cfg, err := LoadConfig(root.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := SetupLogger(cfg).With("component", "cli")

	data, err := readDescription(cmd, path)
	if err != nil {
		return nil, nil, err
	}

	doc, err := description.Load(data, o.compose)
	if err != nil {
		return nil, nil, err
	}

	vars := maps.Clone(cfg.Variables)
	maps.Copy(vars, o.variables)

	result, err := topology.RunWithGraph(doc.Input(), topology.WithVariables(vars))
	if err != nil {
		logger.Debug("topology rejected", "file", path, "stage", result.Stage, "error", err)
		return doc, result, err
	}
	logger.Debug("plan emitted", "file", path, "units", len(result.Plan.Order), "warnings", len(result.Plan.Warnings))
	return doc, result, nil
}

// readDescription reads path, or stdin when path is "-".
func readDescription(cmd *cobra.Command, path string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	return data, nil
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	var (
		src    sourceOptions
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "plan FILE",
		Short: "Validate a topology and print its deployment order",
		Long: `Validate a topology description and print the order in which its units
must be created. Warnings about network bindings, sizing and secrets are
printed after the order and do not change the exit status unless --strict
is given.

Examples:
    topoplan plan stack.yaml
    topoplan plan -c docker-compose.yml --var POSTGRES_PASSWORD=s3cret
    topoplan plan stack.yaml -f json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format: %s (use 'text' or 'json')", format)
			}
			doc, result, err := src.load(cmd, root, args[0])
			if err != nil {
				return err
			}
			if err := writePlan(cmd.OutOrStdout(), format, doc.Name, result.Plan); err != nil {
				return err
			}
			if strict && len(result.Plan.Warnings) > 0 {
				return fmt.Errorf("%w: %d", errStrictWarnings, len(result.Plan.Warnings))
			}
			return nil
		},
	}

	src.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the plan has warnings")

	return cmd
}

func writePlan(w io.Writer, format, name string, plan *topology.Plan) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Name string `json:"name,omitempty"`
			*topology.Plan
		}{name, plan})
	}

	if name != "" {
		fmt.Fprintf(w, "Plan for %s:\n", name)
	} else {
		fmt.Fprintln(w, "Plan:")
	}
	for i, unit := range plan.Order {
		fmt.Fprintf(w, "  %d. %s\n", i+1, unit)
	}
	if len(plan.Warnings) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nWarnings (%d):\n", len(plan.Warnings))
	for _, warning := range plan.Warnings {
		fmt.Fprintf(w, "  - %s\n", warning)
	}
	return nil
}
