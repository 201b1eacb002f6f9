// Package match implements the local command table: deterministic keyword
// resolution for well-known admin intents, no provider round trip.
package match

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opsforge/opspilot/assets"
	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/pkg/filesystem"
	"github.com/opsforge/opspilot/internal/ports"
)

// TableFile is the YAML schema root for command tables.
type TableFile struct {
	Commands []domain.CommandEntry `yaml:"commands"`
}

// Matcher resolves normalized intents against the loaded table. Matching
// is pure string work and safe for concurrent use.
type Matcher struct {
	entries     []domain.CommandEntry
	minKeywords int
	passthrough bool
}

// NewMatcher loads the command table. An empty TableFile selects the
// embedded table; a configured path that cannot be read or parsed is a
// startup error.
func NewMatcher(settings domain.MatcherSettings) (*Matcher, error) {
	raw := assets.DefaultCommandsYAML
	if settings.TableFile != "" {
		data, err := os.ReadFile(filesystem.ExpandPath(settings.TableFile))
		if err != nil {
			return nil, fmt.Errorf("command table %s: %w", settings.TableFile, err)
		}
		raw = data
	}

	var file TableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse command table: %w", err)
	}
	if len(file.Commands) == 0 {
		return nil, fmt.Errorf("command table is empty")
	}
	for i, entry := range file.Commands {
		if entry.Command == "" {
			return nil, fmt.Errorf("command table entry %d: empty command", i)
		}
		if len(entry.Triggers) == 0 {
			return nil, fmt.Errorf("command table entry %d (%s): no triggers", i, entry.Command)
		}
	}

	min := settings.MinKeywords
	if min <= 0 {
		min = domain.DefaultMatcherMinKeywords
	}
	return &Matcher{
		entries:     file.Commands,
		minKeywords: min,
		passthrough: !settings.DisablePassthrough,
	}, nil
}

// Match implements ports.Matcher. The entry whose best trigger matches the
// most keywords wins; on equal scores the entry registered first wins.
// Scores below the threshold leave the intent unresolved so the engine can
// consult a provider instead.
func (m *Matcher) Match(normalized string) (domain.ResolvedCommand, bool) {
	if normalized == "" {
		return domain.ResolvedCommand{}, false
	}

	if m.passthrough && looksLikeCommand(normalized) {
		return domain.ResolvedCommand{
			Command:   normalized,
			Origin:    domain.OriginLocalMatch,
			Rationale: "intent already reads as a shell command",
		}, true
	}

	bestIdx := -1
	bestScore := 0
	var bestTrigger []string
	for i, entry := range m.entries {
		score, trigger := entryScore(entry, normalized)
		if score > bestScore {
			bestIdx, bestScore, bestTrigger = i, score, trigger
		}
	}
	if bestIdx < 0 || bestScore < m.minKeywords {
		return domain.ResolvedCommand{}, false
	}

	entry := m.entries[bestIdx]
	return domain.ResolvedCommand{
		Command:   entry.Command,
		Origin:    domain.OriginLocalMatch,
		Rationale: entry.Description,
		Matched:   bestTrigger,
	}, true
}

// Entries implements ports.Matcher.
func (m *Matcher) Entries() []domain.CommandEntry {
	return m.entries
}

// entryScore returns the keyword count of the entry's best fully-matching
// trigger. A trigger only counts when every keyword appears.
func entryScore(entry domain.CommandEntry, normalized string) (int, []string) {
	bestScore := 0
	var bestTrigger []string
	for _, trigger := range entry.Triggers {
		if len(trigger) <= bestScore {
			continue
		}
		if allKeywordsPresent(trigger, normalized) {
			bestScore = len(trigger)
			bestTrigger = trigger
		}
	}
	return bestScore, bestTrigger
}

func allKeywordsPresent(keywords []string, normalized string) bool {
	for _, kw := range keywords {
		if kw == "" || !strings.Contains(normalized, strings.ToLower(kw)) {
			return false
		}
	}
	return true
}

var _ ports.Matcher = (*Matcher)(nil)
