package domain

import "errors"

// Provider failure kinds. Adapters map vendor-specific failures onto these
// three so the engine's retry policy never inspects vendor details.
var (
	// ErrProviderUnavailable covers transport failures, auth rejections,
	// and non-2xx responses. Never retried.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderTimeout covers deadline expiry while waiting on a
	// provider. Retried exactly once per provider.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderMalformed covers responses that arrived but yielded no
	// usable command. Never retried.
	ErrProviderMalformed = errors.New("provider returned malformed response")
)

// Engine outcomes that end a turn without a command run.
var (
	// ErrNoResolution means neither the local table nor any configured
	// provider produced a command.
	ErrNoResolution = errors.New("no resolution for intent")
	// ErrConfirmationRejected means the operator declined the gate.
	ErrConfirmationRejected = errors.New("confirmation rejected")
	// ErrTurnCancelled means the operator abandoned the turn before
	// execution began.
	ErrTurnCancelled = errors.New("turn cancelled")
	// ErrEmptyIntent means the request carried no usable text.
	ErrEmptyIntent = errors.New("empty intent")
)

// Gateway failure kinds.
var (
	// ErrExecutionTimeout means the command outlived the execution
	// deadline. The command may still be running on the host.
	ErrExecutionTimeout = errors.New("execution timeout")
	// ErrExecutionTransport means the session dropped mid-command with
	// the command state unknown.
	ErrExecutionTransport = errors.New("execution transport failure")
)

// ErrHostUnknown is returned by memory lookups for hosts never seen.
var ErrHostUnknown = errors.New("host not in memory")
