package domain

// RiskTier grades how much damage a command can do on the target host.
type RiskTier string

const (
	// RiskSafe commands are read-only or trivially reversible.
	RiskSafe RiskTier = "safe"
	// RiskSensitive commands mutate state in a recoverable way and require
	// a yes/no confirmation naming the exact command.
	RiskSensitive RiskTier = "sensitive"
	// RiskDestructive commands can cause irreversible damage or loss of
	// access and require the operator to retype the command verbatim.
	RiskDestructive RiskTier = "destructive"
)

var tierSeverity = map[RiskTier]int{
	RiskSafe:        0,
	RiskSensitive:   1,
	RiskDestructive: 2,
}

// Severity returns the ordering weight of the tier. Unknown tiers rank
// above destructive so that a corrupted value can never loosen the gate.
func (t RiskTier) Severity() int {
	if s, ok := tierSeverity[t]; ok {
		return s
	}
	return len(tierSeverity)
}

// Valid reports whether the tier is one of the three known grades.
func (t RiskTier) Valid() bool {
	_, ok := tierSeverity[t]
	return ok
}

// MoreSevere returns the stricter of two tiers.
func MoreSevere(a, b RiskTier) RiskTier {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// RiskAssessment is the classifier's verdict for one command string.
type RiskAssessment struct {
	Tier    RiskTier `json:"tier"`
	Reasons []string `json:"reasons,omitempty"`
	Rules   []string `json:"rules,omitempty"`
}

// RequiresConfirmation reports whether the gate must ask before executing.
func (a RiskAssessment) RequiresConfirmation() bool {
	return a.Tier != RiskSafe
}
