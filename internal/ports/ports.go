// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the resolution engine and
// external adapters (infrastructure). Following the Ports and Adapters
// pattern, these interfaces keep the engine independent of specific
// implementations like SSH transports, provider HTTP APIs, or storage
// backends.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Provider, MemoryStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Services depend on abstractions, not implementations
package ports

import (
	"context"

	"github.com/opsforge/opspilot/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.opspilot/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Matcher resolves intents against the local command table without any
// network round trip. Matching is deterministic: same table, same intent,
// same answer.
type Matcher interface {
	// Match returns the best local resolution and whether any entry
	// cleared the match threshold.
	Match(normalized string) (domain.ResolvedCommand, bool)
	// Entries exposes the loaded table for help surfaces.
	Entries() []domain.CommandEntry
}

// Classifier grades a command string into a risk tier. Evaluation is
// total: every string gets a verdict, and commands matching no rule grade
// safe.
type Classifier interface {
	Evaluate(command string) domain.RiskAssessment
}

// ProviderRequest is the uniform completion request: the normalized intent
// plus the bounded host context a provider is allowed to see.
type ProviderRequest struct {
	Intent string
	Host   domain.HostContext
}

// ProviderResponse is the uniform completion result. Command holds exactly
// one shell command; Rationale is the provider's own explanation of it.
type ProviderResponse struct {
	Command   string
	Rationale string
}

// Provider turns one intent into one command via a completion backend.
// Implementations map their failures onto domain.ErrProviderUnavailable,
// ErrProviderTimeout, or ErrProviderMalformed, and never retry internally;
// retry policy belongs to the engine.
type Provider interface {
	Name() string
	Generate(context.Context, ProviderRequest) (ProviderResponse, error)
}

// ProviderFactory builds provider instances from configuration entries.
// Unknown provider kinds fail here, at startup, never mid-turn.
type ProviderFactory interface {
	ForConfig(domain.ProviderConfig) (Provider, error)
	// ResolveDefaults fills vendor defaults (endpoint, model, credential
	// variable) without building a provider, for diagnostics surfaces.
	ResolveDefaults(domain.ProviderConfig) (domain.ProviderConfig, error)
}

// MemoryStore persists per-host profiles and turn history. Appends on one
// host are atomic and strictly ordered; hosts never see each other's turns.
type MemoryStore interface {
	Append(key domain.HostKey, turn domain.Turn) error
	// RecentContext returns at most limit turns, the oldest of the window
	// first, so providers read the history in natural order.
	RecentContext(key domain.HostKey, limit int) ([]domain.Turn, error)
	Profile(key domain.HostKey) (domain.HostProfile, error)
	RecordFacts(key domain.HostKey, facts domain.HostFacts) error
	Hosts() ([]domain.HostProfile, error)
	Search(key domain.HostKey, keyword string) ([]domain.Turn, error)
	Forget(key domain.HostKey) error
}

// RemoteSession is an established channel to one host. Opening and closing
// sessions is the front-end's business; the engine only runs commands over
// whatever session the request carried.
type RemoteSession interface {
	Run(ctx context.Context, command string) (domain.ExecutionResult, error)
}

// Gateway executes one vetted command over a session, applying the
// execution deadline. A failed or timed-out command is never retried.
type Gateway interface {
	Execute(ctx context.Context, session RemoteSession, command string) (domain.ExecutionResult, error)
}

// ConfirmationPrompter collects per-turn approval for non-safe commands.
// The interaction mode follows the tier: sensitive asks yes/no naming the
// exact command, destructive requires the operator to retype it verbatim.
type ConfirmationPrompter interface {
	Confirm(command string, assessment domain.RiskAssessment) (bool, error)
	// Enabled reports whether a confirmation can be collected at all. When
	// false the engine treats every gated command as declined.
	Enabled() bool
}

// Clipboard provides cross-platform clipboard integration for copying
// resolved commands without executing them.
type Clipboard interface {
	Copy(text string) error
	Enabled() bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (zap, stdout, test sinks).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
