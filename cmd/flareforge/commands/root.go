// ABOUTME: Root command, global flags and workspace bootstrap shared by every subcommand
// ABOUTME: Loads .env and the config file, then opens and initializes the workspace

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/config"
	"github.com/flareos/flareforge/internal/logging"
	"github.com/flareos/flareforge/internal/workspace"
)

const banner = `
  __ _                  __
 / _| | __ _ _ __ ___  / _| ___  _ __ __ _  ___
| |_| |/ _' | '__/ _ \| |_ / _ \| '__/ _' |/ _ \
|  _| | (_| | | |  __/|  _| (_) | | | (_| |  __/
|_| |_|\__,_|_|  \___||_|  \___/|_|  \__, |\___|
                                     |___/
`

var version = "dev"

// SetVersion records the build version shown by the version command.
func SetVersion(v string) {
	version = v
}

// rootOptions holds the global flags. Subcommands receive a pointer so the
// values are read after flag parsing.
type rootOptions struct {
	configPath string
	remoteURL  string
	format     string
	verbose    bool
}

// NewRootCmd creates the flareforge command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flareforge",
		Short: "Local-first FlareOS workspace",
		Long: banner + `
Manage the FlareOS workspace from the terminal: chat threads, memory,
provider keys, the code studio document and agent profiles.

Every change is applied locally first and mirrored to the backend when
one is configured (remote.base_url). When the backend is unreachable the
workspace keeps working from its local cache and reports "offline".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatText, formatJSON:
				return nil
			default:
				return fmt.Errorf("--format must be text or json (got %q)", opts.format)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default $FLAREFORGE_CONFIG or ~/.config/flareforge/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.remoteURL, "remote", "", "Backend base URL, overrides remote.base_url")
	cmd.PersistentFlags().StringVar(&opts.format, "format", formatText, "Output format: text or json")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(NewStatusCmd(opts))
	cmd.AddCommand(NewSyncCmd(opts))
	cmd.AddCommand(NewChatCmd(opts))
	cmd.AddCommand(NewMemoryCmd(opts))
	cmd.AddCommand(NewKeysCmd(opts))
	cmd.AddCommand(NewCodeCmd(opts))
	cmd.AddCommand(NewAgentsCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig reads .env, the config file (defaults when absent) and the flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := o.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.remoteURL != "" {
		cfg.Remote.BaseURL = o.remoteURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// openWorkspace loads the config and opens an initialized workspace.
// Logs go to stderr at warn level unless --verbose is set.
func (o *rootOptions) openWorkspace(cmd *cobra.Command) (*workspace.Workspace, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	if o.verbose {
		logCfg.Level = "debug"
	}
	logger := logging.New(logCfg, cmd.ErrOrStderr())

	w, err := workspace.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening workspace: %w", err)
	}
	return w, cfg, nil
}

// withWorkspace opens the workspace, runs fn and closes it.
func (o *rootOptions) withWorkspace(cmd *cobra.Command, fn func(w *workspace.Workspace) error) error {
	w, _, err := o.openWorkspace(cmd)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(w)
}

func (o *rootOptions) printer(cmd *cobra.Command) printer {
	return printer{out: cmd.OutOrStdout(), format: o.format}
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the flareforge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flareforge %s\n", version)
		},
	}
}
