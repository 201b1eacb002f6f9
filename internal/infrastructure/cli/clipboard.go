package cli

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/opsforge/opspilot/internal/ports"
)

// Clipboard copies resolved commands to the system clipboard via whatever
// tool the platform ships, so --copy works without executing anything.
type Clipboard struct{}

// NewClipboard builds the clipboard helper.
func NewClipboard() *Clipboard {
	return &Clipboard{}
}

// Enabled reports whether this platform has a known clipboard tool.
func (c *Clipboard) Enabled() bool {
	switch runtime.GOOS {
	case "darwin", "linux":
		return true
	default:
		return false
	}
}

// Copy places text on the clipboard.
func (c *Clipboard) Copy(text string) error {
	cmd, err := c.tool()
	if err != nil {
		return err
	}
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard copy: %w", err)
	}
	return nil
}

func (c *Clipboard) tool() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pbcopy"), nil
	case "linux":
		for _, candidate := range [][]string{
			{"xclip", "-selection", "clipboard"},
			{"wl-copy"},
			{"xsel", "--clipboard", "--input"},
		} {
			if _, err := exec.LookPath(candidate[0]); err == nil {
				return exec.Command(candidate[0], candidate[1:]...), nil
			}
		}
		return nil, fmt.Errorf("no clipboard tool found (xclip, wl-copy, xsel)")
	default:
		return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
}

var _ ports.Clipboard = (*Clipboard)(nil)
