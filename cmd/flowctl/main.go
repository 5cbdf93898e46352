package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "flowctl",
		Short:         "flowctl inspects and exercises chatbot flow documents",
		Long:          `flowctl validates a YAML flow, exports its graph and lets you chat with it locally without WhatsApp.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Persistent flags (available to all commands)
	root.PersistentFlags().StringP("flow", "f", "", "Flow document to load, the embedded flow when empty")

	root.AddCommand(newValidateCmd(), newGraphCmd(), newChatCmd())
	return root
}

func loadFlow(cmd *cobra.Command) (*flow.Definition, error) {
	path, _ := cmd.Flags().GetString("flow")
	if path == "" {
		return flow.Default()
	}
	return flow.LoadFile(path)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
