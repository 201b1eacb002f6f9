package cli

import (
	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
)

func newHostsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "hosts",
		Short: "List remembered hosts, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := container.Memory.Hosts()
			if err != nil {
				return err
			}
			RenderHosts(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
}
