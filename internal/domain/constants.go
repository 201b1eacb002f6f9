package domain

import "time"

// File permission constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Provider kinds the completion factory understands.
const (
	ProviderKindDeepSeek = "deepseek"
	ProviderKindOpenAI   = "openai"
	ProviderKindQwen     = "qwen"
	ProviderKindOllama   = "ollama"
)

// Memory backend names accepted by memory.backend.
const (
	MemoryBackendMemory = "memory"
	MemoryBackendFile   = "file"
	MemoryBackendSQLite = "sqlite"
)

// Timeout defaults. Provider and execution deadlines are independent: a
// slow model must not eat into command runtime and vice versa.
const (
	// DefaultProviderTimeoutSeconds bounds one completion attempt.
	DefaultProviderTimeoutSeconds = 30
	// DefaultExecutionTimeoutSeconds bounds one remote command.
	DefaultExecutionTimeoutSeconds = 30
	// DefaultDialTimeout bounds establishing an SSH session.
	DefaultDialTimeout = 10 * time.Second
	// DefaultHTTPClientTimeout is the outer bound on provider HTTP calls,
	// above the per-attempt context deadline.
	DefaultHTTPClientTimeout = 60 * time.Second
)

// Memory bounds
const (
	// DefaultMemoryMaxTurns caps turns kept per host before FIFO eviction.
	DefaultMemoryMaxTurns = 100
	// DefaultContextTurns is how many recent turns providers may see.
	DefaultContextTurns = 10
)

// Matcher defaults
const (
	// DefaultMatcherMinKeywords is the minimum matched-keyword count for a
	// local table hit.
	DefaultMatcherMinKeywords = 1
)

// Completion defaults applied when a provider entry leaves them unset.
const (
	// DefaultCompletionMaxTokens bounds generated responses.
	DefaultCompletionMaxTokens = 500
	// CompletionTemperature keeps command generation near-deterministic.
	CompletionTemperature = 0.1
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
