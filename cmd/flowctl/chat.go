package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/dialogue"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/session"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the flow from the terminal",
		Long:  `Runs the dialogue engine over an in-memory session. Every input line is one inbound message; EOF ends the chat.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadFlow(cmd)
			if err != nil {
				return err
			}
			store, err := session.NewMemoryStore(0)
			if err != nil {
				return err
			}
			engine := dialogue.New(def, session.NewManager(store, def.EntryID()))
			chatID, _ := cmd.Flags().GetString("chat")
			return runChat(cmd.Context(), engine, chatID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("chat", "local", "Chat id used for the session")
	return cmd
}

func runChat(ctx context.Context, engine *dialogue.Engine, chatID string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		reply, err := engine.Step(ctx, chatID, scanner.Text())
		if err != nil {
			return err
		}
		printReply(out, reply)
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func printReply(out io.Writer, reply dialogue.Reply) {
	for _, p := range reply.Payloads {
		switch p.Kind {
		case dialogue.PayloadMedia:
			fmt.Fprintf(out, "[%s] %s", p.Media.Kind, p.Media.Source)
			if p.Media.Caption != "" {
				fmt.Fprintf(out, " %q", p.Media.Caption)
			}
			fmt.Fprintln(out)
		default:
			fmt.Fprintln(out, p.Text)
		}
	}
	fmt.Fprintf(out, "(%s -> %s, %s)\n", reply.From, reply.StateID, reply.Outcome)
}
