package domain

// Config mirrors ~/.opspilot/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	DefaultProvider     string             `yaml:"default_provider"`
	FallbackProviders   []string           `yaml:"fallback_providers,omitempty"`
	Providers           []ProviderConfig   `yaml:"providers"`
	Matcher             MatcherSettings    `yaml:"matcher"`
	Security            SecuritySettings   `yaml:"security"`
	Memory              MemorySettings     `yaml:"memory"`
	Execution           ExecutionSettings  `yaml:"execution"`
	Resolution          ResolutionSettings `yaml:"resolution"`
}

// ProviderConfig describes one completion provider endpoint. AuthEnvVar
// names the environment variable holding the credential; the credential
// value itself never enters configuration, memory, or logs.
type ProviderConfig struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	Model          string `yaml:"model,omitempty"`
	AuthEnvVar     string `yaml:"auth_env_var,omitempty"`
	MaxTokens      int    `yaml:"max_tokens,omitempty"`
	TimeoutSeconds int    `yaml:"timeout,omitempty"`
}

// MatcherSettings tunes the local keyword matcher.
type MatcherSettings struct {
	// TableFile points at a user command table overriding the built-in one.
	TableFile string `yaml:"table_file,omitempty"`
	// MinKeywords is the minimum matched-keyword count for a local hit.
	MinKeywords int `yaml:"min_keywords"`
	// DisablePassthrough turns off resolving intents that already look
	// like shell commands verbatim.
	DisablePassthrough bool `yaml:"disable_passthrough"`
}

// SecuritySettings locates the risk rule table.
type SecuritySettings struct {
	RulesFile string `yaml:"rules_file,omitempty"`
}

// MemorySettings selects and bounds the per-host memory backend.
type MemorySettings struct {
	Backend      string `yaml:"backend"`
	Dir          string `yaml:"dir,omitempty"`
	MaxTurns     int    `yaml:"max_turns"`
	ContextTurns int    `yaml:"context_turns"`
}

// ExecutionSettings controls the gateway deadline.
type ExecutionSettings struct {
	TimeoutSeconds int `yaml:"timeout"`
}

// ResolutionSettings controls the provider deadline, independent of the
// execution one.
type ResolutionSettings struct {
	ProviderTimeoutSeconds int `yaml:"provider_timeout"`
}
