package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/infrastructure/session"
)

// EnvSSHPassword names the variable consulted before prompting for a
// password on the terminal. Only the variable name ever appears in output.
const EnvSSHPassword = "OPSPILOT_SSH_PASSWORD"

// connect parses user@address[:port], collects a password, and dials the
// host. The caller owns the returned client and must Close it.
func connect(ctx context.Context, hostArg string) (*session.Client, domain.HostKey, error) {
	key, err := domain.ParseHostKey(hostArg)
	if err != nil {
		return nil, domain.HostKey{}, err
	}
	password, err := lookupPassword(key)
	if err != nil {
		return nil, domain.HostKey{}, err
	}
	client, err := session.Dial(ctx, key, session.Auth{Password: password})
	if err != nil {
		return nil, domain.HostKey{}, fmt.Errorf("connect %s: %w", key.DialAddr(), err)
	}
	return client, key, nil
}

func lookupPassword(key domain.HostKey) (string, error) {
	if password := os.Getenv(EnvSSHPassword); password != "" {
		return password, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; set %s to authenticate", EnvSSHPassword)
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", key.User, key.Address)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}
