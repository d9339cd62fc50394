// ABOUTME: Code studio commands: print the HTML document or save a new one
// ABOUTME: save reads from a file or from stdin when the file is "-"

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/workspace"
)

// NewCodeCmd creates the code command group.
func NewCodeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Manage the code studio document",
		Long: `Manage the HTML document edited in the code studio.

Examples:
  flareforge code show > page.html
  flareforge code save page.html
  cat page.html | flareforge code save -`,
	}

	cmd.AddCommand(newCodeShowCmd(opts))
	cmd.AddCommand(newCodeSaveCmd(opts))

	return cmd
}

func newCodeShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the HTML document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				html := w.Document.HTML()
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(map[string]string{"html": html})
				}
				_, err := io.WriteString(cmd.OutOrStdout(), html)
				return err
			})
		},
	}
}

func newCodeSaveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file|->",
		Short: "Replace the HTML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				doc := w.Document.Save(cmd.Context(), html)
				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Saved %d bytes", len(doc.HTML))
					p.statusNote(w.Document.Status())
				}
				return nil
			})
		},
	}
}

func readInput(cmd *cobra.Command, name string) (string, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}
