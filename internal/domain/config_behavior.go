package domain

import "fmt"

// DefaultProviderConfig retrieves the configured default provider.
func (c *Config) DefaultProviderConfig() (ProviderConfig, error) {
	if c.DefaultProvider == "" {
		return ProviderConfig{}, fmt.Errorf("no default provider configured")
	}
	if p, ok := c.FindProvider(c.DefaultProvider); ok {
		return p, nil
	}
	return ProviderConfig{}, fmt.Errorf("default provider %s not found in configuration", c.DefaultProvider)
}

// FindProvider searches the provider list by name.
func (c *Config) FindProvider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// HasProvider checks whether a provider with the given name is configured.
func (c *Config) HasProvider(name string) bool {
	_, ok := c.FindProvider(name)
	return ok
}

// FallbackProviderConfigs returns the configured fallbacks that exist,
// preserving list order.
func (c *Config) FallbackProviderConfigs() []ProviderConfig {
	var out []ProviderConfig
	for _, name := range c.FallbackProviders {
		if p, ok := c.FindProvider(name); ok {
			out = append(out, p)
		}
	}
	return out
}

// ProviderChain builds the ordered candidate list for one turn: the
// override alone when set, otherwise the default followed by fallbacks.
func (c *Config) ProviderChain(override string) ([]ProviderConfig, error) {
	if override != "" {
		p, ok := c.FindProvider(override)
		if !ok {
			return nil, fmt.Errorf("provider %s not found in configuration", override)
		}
		return []ProviderConfig{p}, nil
	}
	primary, err := c.DefaultProviderConfig()
	if err != nil {
		return nil, err
	}
	chain := []ProviderConfig{primary}
	for _, p := range c.FallbackProviderConfigs() {
		if p.Name != primary.Name {
			chain = append(chain, p)
		}
	}
	return chain, nil
}

// MemoryBackendName returns the configured backend, defaulting to sqlite.
func (c *Config) MemoryBackendName() string {
	if c.Memory.Backend == "" {
		return MemoryBackendSQLite
	}
	return c.Memory.Backend
}

// MemoryMaxTurns returns the per-host turn cap.
func (c *Config) MemoryMaxTurns() int {
	if c.Memory.MaxTurns <= 0 {
		return DefaultMemoryMaxTurns
	}
	return c.Memory.MaxTurns
}

// MemoryContextTurns returns how many recent turns providers may see.
func (c *Config) MemoryContextTurns() int {
	if c.Memory.ContextTurns <= 0 {
		return DefaultContextTurns
	}
	return c.Memory.ContextTurns
}

// ExecutionTimeoutSeconds returns the gateway deadline.
func (c *Config) ExecutionTimeoutSeconds() int {
	if c.Execution.TimeoutSeconds <= 0 {
		return DefaultExecutionTimeoutSeconds
	}
	return c.Execution.TimeoutSeconds
}

// ProviderTimeoutSeconds returns the per-attempt provider deadline.
func (c *Config) ProviderTimeoutSeconds() int {
	if c.Resolution.ProviderTimeoutSeconds <= 0 {
		return DefaultProviderTimeoutSeconds
	}
	return c.Resolution.ProviderTimeoutSeconds
}

// MatcherMinKeywords returns the local match threshold.
func (c *Config) MatcherMinKeywords() int {
	if c.Matcher.MinKeywords <= 0 {
		return DefaultMatcherMinKeywords
	}
	return c.Matcher.MinKeywords
}

// ValidateConsistency checks referential consistency: provider names are
// unique and non-empty, the default exists, and every fallback exists.
// Provider kinds are checked by the completion factory at construction.
func (c *Config) ValidateConsistency() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	seen := map[string]bool{}
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %s", p.Name)
		}
		seen[p.Name] = true
	}
	if c.DefaultProvider == "" {
		return fmt.Errorf("default_provider is not set")
	}
	if !c.HasProvider(c.DefaultProvider) {
		return fmt.Errorf("default provider %s does not exist in providers list", c.DefaultProvider)
	}
	for _, name := range c.FallbackProviders {
		if !c.HasProvider(name) {
			return fmt.Errorf("fallback provider %s does not exist in providers list", name)
		}
	}
	switch c.MemoryBackendName() {
	case MemoryBackendMemory, MemoryBackendFile, MemoryBackendSQLite:
	default:
		return fmt.Errorf("unknown memory backend %s", c.Memory.Backend)
	}
	return nil
}
