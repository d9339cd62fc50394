// ABOUTME: Sync command retrying deletions that have not reached the backend yet
// ABOUTME: With --watch it keeps flushing on the configured interval until interrupted

package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/workspace"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd(opts *rootOptions) *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push pending deletions to the backend",
		Long: `Retry every deletion that failed to reach the backend.

Deletions made while offline are kept in a local queue and retried with
exponential backoff. sync retries all of them immediately and reports how
many are still pending. Deletions the backend refused outright are listed
and not retried; they clear once the backend copy is fetched again. With --watch it keeps retrying on the
sync.flush_interval schedule until interrupted.

Examples:
  flareforge sync
  flareforge sync --watch
  flareforge sync --watch --interval 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, cfg, err := opts.openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			p := opts.printer(cmd)
			if w.Remote() == nil {
				p.line("No remote configured; nothing to sync.")
				return nil
			}

			remaining := w.Flush(cmd.Context())
			if !watch {
				rejected := w.Rejected()
				if p.isJSON() {
					if rejected == nil {
						rejected = []workspace.RejectedDeletion{}
					}
					return p.json(syncReport{Pending: remaining, Rejected: rejected})
				}
				p.line("Pending deletions: %d", remaining)
				printRejected(p, rejected)
				return nil
			}

			if interval <= 0 {
				interval = cfg.Sync.FlushInterval
			}
			p.line("Pending deletions: %d; retrying every %s (Ctrl-C to stop)", remaining, interval)
			w.Run(cmd.Context(), interval)
			p.line("Pending deletions: %d", pendingTotal(w))
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep retrying until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Retry interval for --watch (default sync.flush_interval)")

	return cmd
}

type syncReport struct {
	Pending  int                          `json:"pending"`
	Rejected []workspace.RejectedDeletion `json:"rejected"`
}

func printRejected(p printer, rejected []workspace.RejectedDeletion) {
	if len(rejected) == 0 {
		return
	}
	p.line("%s", color.RedString("Rejected by the backend (not retried):"))
	tw := p.table()
	fmt.Fprintln(tw, "DOMAIN\tKEY\tERROR")
	for _, r := range rejected {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Domain, r.Key, r.Error)
	}
	_ = tw.Flush()
}

func pendingTotal(w *workspace.Workspace) int {
	total := 0
	for _, d := range w.Status() {
		total += d.Pending
	}
	return total
}
