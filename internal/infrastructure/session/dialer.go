// Package session holds the SSH connection to a managed host. One Client
// per connection; every Run opens a fresh ssh session because the protocol
// allows a single command per session.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// Auth carries the secrets used to open the connection. Values live only
// in memory for the lifetime of the dial.
type Auth struct {
	Password string
}

// Client is an established SSH connection implementing ports.RemoteSession.
type Client struct {
	conn *ssh.Client
	key  domain.HostKey
}

// Dial connects and authenticates. Password auth is offered alongside
// keyboard-interactive since plenty of sshd setups only advertise the
// latter. Host keys are accepted on first contact without pinning.
func Dial(ctx context.Context, key domain.HostKey, auth Auth) (*Client, error) {
	cfg := &ssh.ClientConfig{
		User: key.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(auth.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = auth.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         domain.DefaultDialTimeout,
	}

	dialer := net.Dialer{Timeout: domain.DefaultDialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", key.DialAddr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", key.DialAddr(), err)
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, key.DialAddr(), cfg)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", key.DialAddr(), err)
	}
	return &Client{conn: ssh.NewClient(conn, chans, reqs), key: key}, nil
}

// Key reports which host this client is connected to.
func (c *Client) Key() domain.HostKey {
	return c.key
}

// Run implements ports.RemoteSession. A command that ran and exited
// non-zero comes back as a result with its exit code and a nil error;
// errors mean the transport failed and the outcome is unknown.
func (c *Client) Run(ctx context.Context, command string) (domain.ExecutionResult, error) {
	sess, err := c.conn.NewSession()
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("open ssh session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		// Closing the session tears down the remote process. The buffers
		// stay untouched here: the runner goroutine may still write them.
		sess.Signal(ssh.SIGKILL)
		sess.Close()
		return domain.ExecutionResult{}, ctx.Err()
	case err = <-done:
	}

	result := domain.ExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("run remote command: %w", err)
	}
	return result, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

var _ ports.RemoteSession = (*Client)(nil)
