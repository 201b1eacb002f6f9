package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/opsforge/opspilot/internal/app"
	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/infrastructure/session"
)

// replHistoryLimit bounds how many turns the in-shell history command shows.
const replHistoryLimit = 20

func newShellCommand(container *app.Container) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "shell user@host[:port]",
		Short: "Open an interactive session on a host",
		Long: "shell connects once and then resolves every line you type into a\n" +
			"vetted command on that host. Besides intents it understands help,\n" +
			"facts, history [keyword], and exit.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, key, err := connect(ctx, args[0])
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Connected to %s@%s:%d.\n", key.User, key.Address, key.Port)

			spin := NewSpinner(cmd.ErrOrStderr(), "probing host")
			if isatty.IsTerminal(os.Stderr.Fd()) {
				spin.Start()
			}
			facts := session.DetectFacts(ctx, client)
			spin.Stop()
			container.Resolver.RememberFacts(key, facts)
			if facts.OS != "" {
				fmt.Fprintf(out, "%s, kernel %s\n", facts.OS, facts.Kernel)
			}
			fmt.Fprintln(out, `Type what you want done. "help" lists local commands, "exit" leaves.`)

			repl := &replSession{
				container: container,
				client:    client,
				key:       key,
				provider:  provider,
				in:        bufio.NewScanner(cmd.InOrStdin()),
				out:       out,
			}
			return repl.loop(ctx)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Resolve with this provider instead of the default")
	return cmd
}

// replSession is one interactive loop bound to one connected host.
type replSession struct {
	container *app.Container
	client    *session.Client
	key       domain.HostKey
	provider  string
	in        *bufio.Scanner
	out       io.Writer
}

var errQuit = errors.New("quit")

func (r *replSession) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(r.out, "%s@%s> ", r.key.User, r.key.Address)
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		if err := r.dispatch(ctx, strings.TrimSpace(r.in.Text())); err != nil {
			if errors.Is(err, errQuit) || errors.Is(err, domain.ErrTurnCancelled) {
				return nil
			}
			return err
		}
	}
}

func (r *replSession) dispatch(ctx context.Context, line string) error {
	word, rest, _ := strings.Cut(line, " ")
	switch word {
	case "":
		return nil
	case "exit", "quit":
		return errQuit
	case "help":
		RenderHelp(r.out, r.container.Matcher.Entries())
		return nil
	case "facts":
		return r.showFacts()
	case "history":
		return r.showHistory(strings.TrimSpace(rest))
	default:
		return r.turn(ctx, line)
	}
}

func (r *replSession) showFacts() error {
	profile, err := r.container.Memory.Profile(r.key)
	if errors.Is(err, domain.ErrHostUnknown) {
		RenderFacts(r.out, r.key, domain.HostFacts{})
		return nil
	}
	if err != nil {
		return err
	}
	RenderFacts(r.out, r.key, profile.Facts)
	return nil
}

func (r *replSession) showHistory(keyword string) error {
	var (
		turns []domain.Turn
		err   error
	)
	if keyword == "" {
		turns, err = r.container.Memory.RecentContext(r.key, replHistoryLimit)
	} else {
		turns, err = r.container.Memory.Search(r.key, keyword)
	}
	if err != nil {
		return err
	}
	RenderHistory(r.out, turns)
	return nil
}

// turn runs one intent. Resolution failures are printed, not returned, so
// a mistyped intent never ends the session.
func (r *replSession) turn(ctx context.Context, line string) error {
	resp, err := r.container.Resolver.Resolve(ctx, r.client, domain.TurnRequest{
		Host:      r.key,
		RawIntent: line,
		Provider:  r.provider,
	})
	switch {
	case errors.Is(err, domain.ErrTurnCancelled):
		return err
	case errors.Is(err, domain.ErrConfirmationRejected):
		fmt.Fprintln(r.out, "Cancelled.")
	case errors.Is(err, domain.ErrNoResolution):
		fmt.Fprintln(r.out, "AI resolution failed, please rephrase or provide the command directly.")
	case err != nil:
		fmt.Fprintf(r.out, "error: %v\n", err)
	default:
		RenderTurn(r.out, resp)
	}
	return nil
}
