package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the flow for consistency",
		Long:  `Loads the flow and reports every dangling target, duplicate option and misplaced command token at once.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadFlow(cmd)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flow is valid: %d states, entry %s\n", def.Len(), def.EntryID())
			return nil
		},
	}
}
