package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/topoplan/internal/core/description"
)

func newConvertCmd() *cobra.Command {
	var compose bool

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Print a file as a topoplan description",
		Long: `Print FILE as a topoplan description. With --compose the file is
imported as docker-compose YAML first, so the result can be edited and
planned without the compose file.

Examples:
    topoplan convert -c docker-compose.yml > stack.yaml
    topoplan convert stack.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readDescription(cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := description.Load(data, compose)
			if err != nil {
				return err
			}
			out, err := description.Marshal(doc)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVarP(&compose, "compose", "c", false, "Read the file as docker-compose YAML")
	return cmd
}
