// Package cli wires the cobra command tree over the resolution engine:
// the interactive shell, one-shot asks, memory browsing, diagnostics, and
// configuration management.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd builds the container and wires the cobra root command. Bare
// invocations with a host argument fall through to the shell, so
// `opspilot root@web1` drops straight into a session.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	container, err := app.BuildContainer(ctx, app.Options{
		Verbose:    opts.Verbose,
		ConfigPath: opts.ConfigPath,
	})
	if err != nil {
		return nil, err
	}
	container.Resolver.Prompter = NewPrompter(nil, nil)

	shellCmd := newShellCommand(container)
	askCmd := newAskCommand(container)

	root := &cobra.Command{
		Use:   "opspilot [user@host [intent...]]",
		Short: "opspilot - natural language ops over SSH",
		Long: "opspilot resolves natural language into vetted shell commands and runs\n" +
			"them on remote hosts over SSH, with risk grading and per-turn confirmation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return cmd.Help()
			case len(args) == 1:
				shellCmd.SetArgs(args)
				return shellCmd.ExecuteContext(cmd.Context())
			default:
				askCmd.SetArgs(args)
				return askCmd.ExecuteContext(cmd.Context())
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(shellCmd)
	root.AddCommand(askCmd)
	root.AddCommand(newHistoryCommand(container))
	root.AddCommand(newHostsCommand(container))
	root.AddCommand(newConfigCommand(container))
	root.AddCommand(newDoctorCommand(container))
	root.AddCommand(newVersionCommand())
	return root, nil
}
