package domain

// Origin records which resolution path produced a command.
type Origin string

const (
	// OriginLocalMatch marks commands resolved from the built-in table
	// without consulting a completion provider.
	OriginLocalMatch Origin = "local_match"
	// OriginAIGenerated marks commands produced by a completion provider.
	OriginAIGenerated Origin = "ai_generated"
)

// ResolvedCommand is the outcome of resolving one intent: a single shell
// command plus the metadata the gate and the record keeper need. The value
// is never mutated after resolution; classification produces a new copy.
type ResolvedCommand struct {
	Command   string   `json:"command"`
	Origin    Origin   `json:"origin"`
	Risk      RiskTier `json:"risk"`
	Rationale string   `json:"rationale,omitempty"`
	Matched   []string `json:"matched,omitempty"`
}

// WithRisk returns a copy carrying the classified tier and the rules that
// fired. The receiver stays unchanged.
func (r ResolvedCommand) WithRisk(tier RiskTier, matched []string) ResolvedCommand {
	r.Risk = tier
	if len(matched) > 0 {
		r.Matched = append([]string(nil), matched...)
	}
	return r
}

// CommandEntry is one row of the local command table. Each trigger is a
// keyword set; the entry matches an intent when every keyword of at least
// one trigger appears in the normalized text.
type CommandEntry struct {
	Category    string     `yaml:"category,omitempty"`
	Command     string     `yaml:"command"`
	Description string     `yaml:"description,omitempty"`
	Triggers    [][]string `yaml:"triggers"`
}
