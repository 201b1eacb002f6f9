package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
	"github.com/opsforge/opspilot/internal/domain"
)

func newHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse per-host turn memory",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list user@host[:port]",
		Short: "List a host's recent turns, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := domain.ParseHostKey(args[0])
			if err != nil {
				return err
			}
			turns, err := container.Memory.RecentContext(key, limit)
			if err != nil {
				return err
			}
			RenderHistory(cmd.OutOrStdout(), turns)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Max turns to show")

	searchCmd := &cobra.Command{
		Use:   "search user@host[:port] <keyword...>",
		Short: "Search a host's turns by intent or command text",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := domain.ParseHostKey(args[0])
			if err != nil {
				return err
			}
			turns, err := container.Memory.Search(key, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			RenderHistory(cmd.OutOrStdout(), turns)
			return nil
		},
	}

	forgetCmd := &cobra.Command{
		Use:   "forget user@host[:port]",
		Short: "Erase everything remembered about a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := domain.ParseHostKey(args[0])
			if err != nil {
				return err
			}
			if err := container.Memory.Forget(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s.\n", key.String())
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, forgetCmd)
	return historyCmd
}
