// ABOUTME: Key vault commands: show masked provider secrets and set one provider
// ABOUTME: Secrets are masked to their last four characters unless --reveal is given

package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/workspace"
)

// NewKeysCmd creates the keys command group.
func NewKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
		Long: `Manage the provider API key vault.

Known providers: ` + providerList() + `

Examples:
  flareforge keys show
  flareforge keys set openai sk-...
  flareforge keys clear`,
	}

	cmd.AddCommand(newKeysShowCmd(opts))
	cmd.AddCommand(newKeysSetCmd(opts))
	cmd.AddCommand(newKeysClearCmd(opts))

	return cmd
}

func providerList() string {
	ids := make([]string, 0, len(model.Providers))
	for _, p := range model.Providers {
		ids = append(ids, p.ID)
	}
	return strings.Join(ids, ", ")
}

func newKeysShowCmd(opts *rootOptions) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show provider keys (masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				keys := w.Vault.Masked()
				if reveal {
					keys = w.Vault.Providers()
				}
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(keys)
				}

				tw := p.table()
				fmt.Fprintln(tw, "PROVIDER\tKEY")
				for _, id := range sortedProviders(keys) {
					value := keys[id]
					if value == "" {
						value = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\n", providerLabel(id), value)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print secrets in clear text")

	return cmd
}

// sortedProviders lists known providers in their display order, then any others by id.
func sortedProviders(keys map[string]string) []string {
	out := make([]string, 0, len(keys))
	for _, p := range model.Providers {
		if _, ok := keys[p.ID]; ok {
			out = append(out, p.ID)
		}
	}
	var extra []string
	for id := range keys {
		if !model.KnownProvider(id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func providerLabel(id string) string {
	for _, p := range model.Providers {
		if p.ID == id {
			return p.Label
		}
	}
	return id
}

func newKeysSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider> <secret>",
		Short: "Store the key of one provider",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				_, err := w.Vault.SetKey(cmd.Context(), args[0], strings.TrimSpace(args[1]))
				if errors.Is(err, workspace.ErrUnknownProvider) {
					return fmt.Errorf("unknown provider %q (known: %s)", args[0], providerList())
				}
				if err != nil {
					return err
				}

				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Saved %s key %s", providerLabel(args[0]), model.Mask(strings.TrimSpace(args[1])))
					p.statusNote(w.Vault.Status())
				}
				return nil
			})
		},
	}
}

func newKeysClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored provider key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				w.Vault.Save(cmd.Context(), model.EmptyVault().Providers)
				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Cleared all provider keys")
					p.statusNote(w.Vault.Status())
				}
				return nil
			})
		},
	}
}
