// ABOUTME: Chat commands: list, show, create, send to and delete threads
// ABOUTME: Sends made while offline get a local echo reply and sync on the next online send

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/workspace"
)

// NewChatCmd creates the chat command group.
func NewChatCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage chat threads",
		Long: `Manage chat threads.

Threads are listed newest first. Sending to a thread appends your message
and the assistant reply; without --thread a new thread is started and
titled after the first 30 characters of the message.`,
	}

	cmd.AddCommand(newChatListCmd(opts))
	cmd.AddCommand(newChatShowCmd(opts))
	cmd.AddCommand(newChatNewCmd(opts))
	cmd.AddCommand(newChatSendCmd(opts))
	cmd.AddCommand(newChatDeleteCmd(opts))

	return cmd
}

func newChatListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chat threads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				threads := w.Chats.Threads()
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(threads)
				}
				if len(threads) == 0 {
					p.line("No threads")
					return nil
				}

				tw := p.table()
				fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tCREATED")
				for _, t := range threads {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, truncate(t.Title, 30), len(t.Messages), formatMillis(t.CreatedAt))
				}
				return tw.Flush()
			})
		},
	}
}

func newChatShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show the messages of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				thread, ok := w.Chats.Thread(args[0])
				if !ok {
					return fmt.Errorf("thread %s not found", args[0])
				}
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(thread)
				}
				printThread(p, thread)
				return nil
			})
		},
	}
}

func printThread(p printer, thread model.Thread) {
	p.line("%s %s", color.New(color.Bold).Sprint(thread.Title), color.HiBlackString("(%s)", thread.ID))
	for _, m := range thread.Messages {
		who := color.CyanString("you")
		if m.Role == model.RoleAssistant {
			who = color.MagentaString("assistant")
		}
		p.line("%s %s: %s", color.HiBlackString(formatMillis(m.TS)), who, m.Content)
	}
}

func newChatNewCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create an empty thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				thread := w.Chats.NewThread(cmd.Context())
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(thread)
				}
				p.line("%s", thread.ID)
				return nil
			})
		},
	}
}

func newChatSendCmd(opts *rootOptions) *cobra.Command {
	var threadID string

	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Send a message",
		Long: `Send a message and print the reply.

Examples:
  flareforge chat send "hello there"
  flareforge chat send --thread 7b0c... "and another thing"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				thread, err := w.Chats.Send(cmd.Context(), threadID, strings.Join(args, " "))
				if errors.Is(err, workspace.ErrEmptyMessage) {
					return errors.New("message must not be blank")
				}
				if err != nil {
					return err
				}

				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(thread)
				}
				if n := len(thread.Messages); n > 0 {
					p.line("%s", thread.Messages[n-1].Content)
				}
				p.line("%s", color.HiBlackString("thread %s", thread.ID))
				p.statusNote(w.Chats.State().Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "Thread to send to (default: start a new thread)")

	return cmd
}

func newChatDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <thread-id>",
		Short: "Delete a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				w.Chats.Delete(cmd.Context(), args[0])
				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Deleted %s", args[0])
					p.statusNote(w.Chats.State().Status)
				}
				return nil
			})
		},
	}
}
