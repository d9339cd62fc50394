// ABOUTME: Agent profile commands: list, create, clone and delete
// ABOUTME: Agents live only in the local cache; there is no backend endpoint for them

package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flareos/flareforge/internal/model"
	"github.com/flareos/flareforge/internal/workspace"
)

// NewAgentsCmd creates the agents command group.
func NewAgentsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage agent profiles",
		Long: `Manage agent profiles stored on this device.

Examples:
  flareforge agents create --name Nova
  flareforge agents clone <id>
  flareforge agents list`,
	}

	cmd.AddCommand(newAgentsListCmd(opts))
	cmd.AddCommand(newAgentsCreateCmd(opts))
	cmd.AddCommand(newAgentsCloneCmd(opts))
	cmd.AddCommand(newAgentsDeleteCmd(opts))

	return cmd
}

func newAgentsListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agent profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				agents := w.Agents.List()
				p := opts.printer(cmd)
				if p.isJSON() {
					return p.json(agents)
				}
				if len(agents) == 0 {
					p.line("No agents")
					return nil
				}

				tw := p.table()
				fmt.Fprintln(tw, "ID\tNAME\tMODEL\tTONE\tPURPOSE")
				for _, a := range agents {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Model, a.Tone, truncate(a.Purpose, 40))
				}
				return tw.Flush()
			})
		},
	}
}

func newAgentsCreateCmd(opts *rootOptions) *cobra.Command {
	draft := model.DefaultAgent()

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				agent, err := w.Agents.Create(cmd.Context(), draft)
				if errors.Is(err, workspace.ErrAgentName) {
					return errors.New("--name must not be blank")
				}
				if err != nil {
					return err
				}
				return printAgent(opts.printer(cmd), "Created", agent)
			})
		},
	}

	cmd.Flags().StringVar(&draft.Name, "name", draft.Name, "Agent name")
	cmd.Flags().StringVar(&draft.Model, "model", draft.Model, "Model as provider:model")
	cmd.Flags().StringVar(&draft.Tone, "tone", draft.Tone, "Conversational tone")
	cmd.Flags().StringVar(&draft.Purpose, "purpose", draft.Purpose, "What the agent is for")

	return cmd
}

func newAgentsCloneCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <agent-id>",
		Short: "Copy an agent profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				agent, err := w.Agents.Clone(cmd.Context(), args[0])
				if errors.Is(err, workspace.ErrAgentNotFound) {
					return fmt.Errorf("agent %s not found", args[0])
				}
				if err != nil {
					return err
				}
				return printAgent(opts.printer(cmd), "Cloned", agent)
			})
		},
	}
}

func newAgentsDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <agent-id>",
		Short: "Delete an agent profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withWorkspace(cmd, func(w *workspace.Workspace) error {
				if _, ok := w.Agents.Get(args[0]); !ok {
					return fmt.Errorf("agent %s not found", args[0])
				}
				w.Agents.Remove(cmd.Context(), args[0])
				p := opts.printer(cmd)
				if !p.isJSON() {
					p.line("Deleted %s", args[0])
				}
				return nil
			})
		},
	}
}

func printAgent(p printer, verb string, agent model.Agent) error {
	if p.isJSON() {
		return p.json(agent)
	}
	p.line("%s %s (%s)", verb, agent.Name, agent.ID)
	return nil
}
