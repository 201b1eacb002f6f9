package domain

import "time"

// TurnOutcome states how a resolved turn ended.
type TurnOutcome string

const (
	OutcomeExecuted        TurnOutcome = "executed"
	OutcomeExecutionFailed TurnOutcome = "execution_failed"
	OutcomeRejected        TurnOutcome = "rejected"
)

// Turn is one completed intent/command exchange as remembered per host.
// Turns are immutable once appended to a host's memory.
type Turn struct {
	ID         string      `json:"id"`
	Timestamp  time.Time   `json:"timestamp"`
	Intent     string      `json:"intent"`
	Command    string      `json:"command"`
	Origin     Origin      `json:"origin"`
	Risk       RiskTier    `json:"risk"`
	Outcome    TurnOutcome `json:"outcome"`
	ExitCode   int         `json:"exit_code"`
	Output     string      `json:"output,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// OutputExcerptLimit caps how many runes of command output a turn retains.
const OutputExcerptLimit = 500

// ExcerptOutput trims output to OutputExcerptLimit runes for storage.
func ExcerptOutput(output string) string {
	runes := []rune(output)
	if len(runes) <= OutputExcerptLimit {
		return output
	}
	return string(runes[:OutputExcerptLimit])
}

// ExecutionResult is what the gateway reports back for one command run.
type ExecutionResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

// CombinedOutput merges stdout and stderr the way the turn record keeps
// them: stdout first, stderr appended under a warning marker when both are
// present, stderr alone when the command wrote nothing else.
func (r ExecutionResult) CombinedOutput() string {
	switch {
	case r.Stdout != "" && r.Stderr != "":
		return r.Stdout + "\n[stderr] " + r.Stderr
	case r.Stderr != "":
		return r.Stderr
	default:
		return r.Stdout
	}
}

// TurnRequest is one operator request handed to the resolution engine.
type TurnRequest struct {
	Host      HostKey
	RawIntent string
	// Provider optionally overrides the configured default provider.
	Provider string
	// NoExecute stops the turn after classification; nothing is gated,
	// executed, or recorded.
	NoExecute bool
}

// TurnResponse reports what the engine did with one request.
type TurnResponse struct {
	Resolved   ResolvedCommand
	Assessment RiskAssessment
	// Provider names the completion provider consulted, empty for local
	// matches.
	Provider  string
	Execution *ExecutionResult
	Outcome   TurnOutcome
	// Recorded is false when the turn ended before anything was worth
	// remembering (unresolved intents, --no-exec runs).
	Recorded bool
}
