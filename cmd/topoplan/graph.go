package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/topoplan/internal/core/render"
)

func newGraphCmd(root *rootOptions) *cobra.Command {
	var (
		src       sourceOptions
		format    string
		showPorts bool
		steps     bool
	)

	cmd := &cobra.Command{
		Use:   "graph FILE",
		Short: "Generate a DOT or Mermaid graph of unit dependencies",
		Long: `Generate a graph showing unit dependencies and load-balancer listeners.
Edges point from a dependent unit to the unit it needs.

The output can be rendered with Graphviz:
    topoplan graph stack.yaml | dot -Tpng -o stack.png

Or used in GitHub markdown (Mermaid format):
    topoplan graph stack.yaml -f mermaid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			_, result, err := src.load(cmd, root, args[0])
			if err != nil {
				return err
			}

			opts := render.Options{Format: f, ShowPorts: showPorts}
			if steps {
				opts.Plan = result.Plan
			}
			return render.Render(cmd.OutOrStdout(), result.Graph, result.Targets, opts)
		},
	}

	src.bind(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&showPorts, "ports", "p", false, "Show port bindings on unit nodes")
	cmd.Flags().BoolVarP(&steps, "steps", "s", false, "Prefix units with their rollout step")

	return cmd
}
