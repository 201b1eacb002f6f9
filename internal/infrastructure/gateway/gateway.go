// Package gateway dispatches vetted commands to a remote session under a
// hard deadline. Every execution passes through here so the timeout and
// error taxonomy stay uniform no matter how the session was established.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// Gateway applies the execution timeout and maps transport failures onto
// the execution error kinds. It never retries: re-running a command that
// may have already taken effect is the operator's call, not ours.
type Gateway struct {
	timeout time.Duration
}

// New builds a gateway with the configured per-command timeout.
func New(timeoutSeconds int) *Gateway {
	if timeoutSeconds <= 0 {
		timeoutSeconds = domain.DefaultExecutionTimeoutSeconds
	}
	return &Gateway{timeout: time.Duration(timeoutSeconds) * time.Second}
}

// Execute implements ports.Gateway. A command that ran and exited non-zero
// is a result, not an error; errors mean the command's outcome is unknown.
func (g *Gateway) Execute(ctx context.Context, session ports.RemoteSession, command string) (domain.ExecutionResult, error) {
	if strings.TrimSpace(command) == "" {
		return domain.ExecutionResult{}, errors.New("execute: empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	result, err := session.Run(runCtx, command)
	if result.DurationMS == 0 {
		result.DurationMS = time.Since(start).Milliseconds()
	}
	if err == nil {
		return result, nil
	}

	switch {
	case errors.Is(err, context.Canceled):
		// Operator abandoned the turn; not a transport fault.
		return result, err
	case errors.Is(err, context.DeadlineExceeded):
		return result, fmt.Errorf("command still running after %s: %w", g.timeout, domain.ErrExecutionTimeout)
	default:
		return result, fmt.Errorf("%v: %w", err, domain.ErrExecutionTransport)
	}
}

var _ ports.Gateway = (*Gateway)(nil)
