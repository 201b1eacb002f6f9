package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// Prompter collects per-turn confirmations on stdio. The question matches
// the tier: sensitive commands take a yes/no, destructive commands are not
// run until the operator retypes them character for character.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter constructs a prompter. Nil readers and writers fall back to
// stdio; an explicit reader marks the prompter interactive, which is what
// tests want.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	interactive := true
	if in == nil {
		in = os.Stdin
		interactive = isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Enabled reports whether a confirmation can be collected. Piped stdin
// means no: the engine then declines every gated command instead of
// letting a here-doc answer safety questions.
func (p *Prompter) Enabled() bool {
	return p.interactive
}

// Confirm asks for approval of one command. The answer authorizes this
// turn only.
func (p *Prompter) Confirm(command string, assessment domain.RiskAssessment) (bool, error) {
	fmt.Fprintf(p.out, "\n⚠️  %s command\n", strings.ToUpper(string(assessment.Tier)))
	for _, reason := range assessment.Reasons {
		fmt.Fprintf(p.out, " - %s\n", reason)
	}
	fmt.Fprintf(p.out, "Command:\n  %s\n", command)

	switch assessment.Tier {
	case domain.RiskDestructive:
		return p.askRetype(command)
	default:
		return p.ask(command)
	}
}

func (p *Prompter) ask(command string) (bool, error) {
	fmt.Fprintf(p.out, "Run `%s`? [y/N]: ", command)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	line = strings.ToLower(line)
	return line == "y" || line == "yes", nil
}

func (p *Prompter) askRetype(command string) (bool, error) {
	fmt.Fprint(p.out, "Retype the command exactly to run it, or press Enter to cancel: ")
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	return line == command, nil
}

// readLine treats EOF on a non-empty last line as a valid answer so that
// `echo -n y |` works, and EOF on an empty read as a decline.
func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
