package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the flow graph",
		Long:  `Outputs the states and option edges of the flow as Graphviz DOT or JSON.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadFlow(cmd)
			if err != nil {
				return err
			}
			graph := def.Graph()

			format, _ := cmd.Flags().GetString("format")
			switch strings.ToLower(format) {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), graph.DOT())
				return nil
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(graph)
			default:
				return fmt.Errorf("unknown graph format %q, use dot or json", format)
			}
		},
	}
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	return cmd
}
