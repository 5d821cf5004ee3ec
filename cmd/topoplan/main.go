// Command topoplan validates container topologies and emits deployment plans.
//
// Usage:
//
//	topoplan plan stack.yaml              Print the deployment order
//	topoplan plan -c docker-compose.yml   Plan a compose file
//	topoplan graph stack.yaml | dot -Tpng Draw the dependency graph
//	topoplan convert -c compose.yml       Import a compose file
//	topoplan serve --config topoplan.yaml Run the HTTP API
//	topoplan version                      Show version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitFailure         = 1 // topology errors, strict warnings, bad flags
	ExitDatabaseError   = 2
	ExitHTTPServerError = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		var sErr *ServerError
		if errors.As(err, &sErr) {
			return sErr.ExitCode
		}
		return ExitFailure
	}
	return ExitSuccess
}

// rootOptions are shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "topoplan",
		Short: "Validate container topologies and plan their rollout",
		Long: `topoplan checks a description of containerized units, their dependencies
and load-balancer targets, and prints the order in which to create them.

Dependencies always come before their dependents. Ties are broken by the
order units appear in the description, so the same input always yields
the same plan.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file")

	root.AddCommand(
		newPlanCmd(opts),
		newGraphCmd(opts),
		newConvertCmd(),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}
