// ABOUTME: Status command showing the device id, backend and per-domain sync state
// ABOUTME: Initializing the workspace is what probes the backend

package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/workspace"
)

type statusReport struct {
	Device  string                   `json:"device"`
	Remote  string                   `json:"remote"`
	Backend string                   `json:"backend,omitempty"`
	Domains []workspace.DomainStatus `json:"domains"`

	// CacheKeys is filled with --verbose.
	CacheKeys []string `json:"cache_keys,omitempty"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status of every domain",
		Long: `Show the device id, the configured backend and the sync status of
every domain.

Statuses:
  online   the last backend call succeeded
  offline  the backend was unreachable; local data is shown
  local    the domain has no backend (agents, or no remote configured)

Examples:
  flareforge status
  flareforge status --format json
  flareforge status --verbose     # also list local cache keys`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				report := statusReport{
					Device:  w.DeviceID(cmd.Context()),
					Remote:  "local-only",
					Domains: w.Status(),
				}
				if c := w.Remote(); c != nil {
					report.Remote = c.BaseURL()
					report.Backend = "healthy"
					if err := c.Health(cmd.Context()); err != nil {
						report.Backend = "unreachable: " + err.Error()
					}
				}

				if opts.verbose {
					keys, err := w.CacheKeys(cmd.Context())
					if err != nil {
						return fmt.Errorf("listing cache keys: %w", err)
					}
					report.CacheKeys = keys
				}

				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(report)
				}

				p.line("%s %s", color.HiBlackString("Device:"), report.Device)
				p.line("%s %s", color.HiBlackString("Remote:"), report.Remote)
				if report.Backend != "" {
					p.line("%s %s", color.HiBlackString("Backend:"), report.Backend)
				}
				p.line("")

				tw := p.table()
				fmt.Fprintln(tw, "DOMAIN\tSTATUS\tRECORDS\tPENDING")
				for _, d := range report.Domains {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Domain, statusLabel(d.Status), d.Records, d.Pending)
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				if len(report.CacheKeys) > 0 {
					p.line("")
					p.line("%s", color.HiBlackString("Cache keys:"))
					for _, k := range report.CacheKeys {
						p.line("  %s", k)
					}
				}
				return nil
			})
		},
	}
}
