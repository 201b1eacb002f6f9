// Package security grades commands into risk tiers with a regex rule
// table. Compound commands are split so no segment escapes grading.
package security

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/opsforge/opspilot/assets"
	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/pkg/filesystem"
	"github.com/opsforge/opspilot/internal/ports"
)

// Classifier grades commands against a regex rule table. Rule problems
// surface at construction; Evaluate itself is total and never errors.
type Classifier struct {
	rules []compiledRule
}

type compiledRule struct {
	re   *regexp.Regexp
	rule RiskRule
}

// RiskRule describes one regex-based classification rule.
type RiskRule struct {
	Pattern string          `yaml:"pattern"`
	Tier    domain.RiskTier `yaml:"tier"`
	Message string          `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules []RiskRule `yaml:"rules"`
}

// NewClassifier loads the rule table from path. An empty path selects the
// embedded defaults; a configured path that cannot be read or parsed is a
// startup error, never a silent downgrade to weaker rules.
func NewClassifier(path string) (*Classifier, error) {
	raw := assets.DefaultRulesYAML
	if path != "" {
		data, err := os.ReadFile(filesystem.ExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("risk rules %s: %w", path, err)
		}
		raw = data
	}

	var file RulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse risk rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("risk rule table is empty")
	}

	compiled := make([]compiledRule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("risk rule %d: empty pattern", i)
		}
		if !rule.Tier.Valid() {
			return nil, fmt.Errorf("risk rule %d: unknown tier %q", i, rule.Tier)
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("risk rule %d: %w", i, err)
		}
		compiled = append(compiled, compiledRule{re: re, rule: rule})
	}

	return &Classifier{rules: compiled}, nil
}

// Evaluate implements ports.Classifier. The command is matched as a whole
// and segment by segment, so a destructive tail of a compound command
// cannot hide behind a harmless head. When several rules fire the highest
// tier wins, whatever the rule order.
func (c *Classifier) Evaluate(command string) domain.RiskAssessment {
	assessment := domain.RiskAssessment{Tier: domain.RiskSafe}
	targets := evaluationTargets(command)
	for _, cr := range c.rules {
		for _, target := range targets {
			if !cr.re.MatchString(target) {
				continue
			}
			assessment.Tier = domain.MoreSevere(assessment.Tier, cr.rule.Tier)
			assessment.Reasons = append(assessment.Reasons, cr.rule.Message)
			assessment.Rules = append(assessment.Rules, cr.rule.Pattern)
			break
		}
	}
	return assessment
}

// RuleCount reports how many rules are loaded, for diagnostics.
func (c *Classifier) RuleCount() int {
	return len(c.rules)
}

// evaluationTargets returns the whole command plus its compound segments.
// Whole-command matching keeps operator-spanning patterns (pipe-to-shell,
// fork bombs) intact; per-segment matching lets anchored patterns see each
// command at position zero.
func evaluationTargets(command string) []string {
	segments := splitCompound(command)
	targets := make([]string, 0, len(segments)+1)
	targets = append(targets, command)
	for _, seg := range segments {
		if seg != command {
			targets = append(targets, seg)
		}
	}
	return targets
}

var _ ports.Classifier = (*Classifier)(nil)
