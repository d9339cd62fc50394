// ABOUTME: Memory commands: list, set and delete key/value entries
// ABOUTME: An existing key keeps its original timestamp when its value changes

package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/workspace"
)

// NewMemoryCmd creates the memory command group.
func NewMemoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage persistent memory",
		Long: `Manage the key/value memory shared with the assistant.

Examples:
  flareforge memory set name "Ada Lovelace"
  flareforge memory list
  flareforge memory delete name`,
	}

	cmd.AddCommand(newMemoryListCmd(opts))
	cmd.AddCommand(newMemorySetCmd(opts))
	cmd.AddCommand(newMemoryDeleteCmd(opts))

	return cmd
}

func newMemoryListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List memory entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				items := w.Memory.Items()
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(items)
				}
				if len(items) == 0 {
					p.line("No memory entries")
					return nil
				}

				tw := p.table()
				fmt.Fprintln(tw, "KEY\tVALUE\tADDED")
				for _, item := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Key, truncate(item.Value, 50), formatMillis(item.TS))
				}
				return tw.Flush()
			})
		},
	}
}

func newMemorySetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value...>",
		Short: "Set a memory entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				item, err := w.Memory.Set(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if errors.Is(err, workspace.ErrEmptyKey) {
					return errors.New("key must not be blank")
				}
				if err != nil {
					return err
				}

				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(item)
				}
				p.line("%s = %s", item.Key, item.Value)
				p.statusNote(w.Memory.State().Status)
				return nil
			})
		},
	}
}

func newMemoryDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a memory entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				w.Memory.Delete(cmd.Context(), args[0])
				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Deleted %s", args[0])
					p.statusNote(w.Memory.State().Status)
				}
				return nil
			})
		},
	}
}
