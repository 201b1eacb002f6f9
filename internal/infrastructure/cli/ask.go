package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/infrastructure/session"
	"github.com/opsforge/opspilot/internal/ports"
)

func newAskCommand(container *app.Container) *cobra.Command {
	var (
		provider string
		noExec   bool
		copyCmd  bool
	)
	clip := NewClipboard()

	cmd := &cobra.Command{
		Use:   "ask user@host[:port] <intent...>",
		Short: "Resolve one intent and run it on a host",
		Long: "ask resolves a natural language intent into a single shell command,\n" +
			"grades its risk, asks for confirmation when the grade demands one, and\n" +
			"runs it on the host. With --no-exec the turn stops after grading.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			req := domain.TurnRequest{
				RawIntent: strings.Join(args[1:], " "),
				Provider:  provider,
				NoExecute: noExec,
			}

			// A preview turn never touches the network beyond the provider,
			// so it only needs the key, not a connection.
			var remote ports.RemoteSession
			if noExec {
				key, err := domain.ParseHostKey(args[0])
				if err != nil {
					return err
				}
				req.Host = key
			} else {
				client, key, err := connect(ctx, args[0])
				if err != nil {
					return err
				}
				defer client.Close()
				req.Host = key
				remote = client

				container.Resolver.RememberFacts(key, session.DetectFacts(ctx, client))
			}

			resp, err := container.Resolver.Resolve(ctx, remote, req)
			if copyCmd && resp.Resolved.Command != "" {
				if copyErr := clip.Copy(resp.Resolved.Command); copyErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", copyErr)
				} else {
					fmt.Fprintln(out, "Copied to clipboard.")
				}
			}
			if errors.Is(err, domain.ErrConfirmationRejected) {
				RenderTurn(out, resp)
				return nil
			}
			if errors.Is(err, domain.ErrNoResolution) {
				return errors.New("AI resolution failed, please rephrase or provide the command directly")
			}
			if err != nil {
				return err
			}
			RenderTurn(out, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Resolve with this provider instead of the default")
	cmd.Flags().BoolVarP(&noExec, "no-exec", "n", false, "Stop after resolution and risk grading")
	cmd.Flags().BoolVarP(&copyCmd, "copy", "c", false, "Copy the resolved command to the clipboard")
	return cmd
}
