package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/opsforge/opspilot/internal/domain"
)

// RenderTurn prints one resolved turn: the command, where it came from,
// how risky it graded, and what happened when it ran.
func RenderTurn(out io.Writer, resp domain.TurnResponse) {
	fmt.Fprintln(out, "Command:")
	fmt.Fprintf(out, "  %s\n", resp.Resolved.Command)
	if resp.Resolved.Rationale != "" {
		fmt.Fprintf(out, "  (%s)\n", resp.Resolved.Rationale)
	}

	origin := "local table"
	if resp.Resolved.Origin == domain.OriginAIGenerated {
		origin = "provider " + resp.Provider
	}
	fmt.Fprintf(out, "Origin: %s\n", origin)

	fmt.Fprintf(out, "Risk: %s\n", strings.ToUpper(string(resp.Assessment.Tier)))
	for _, reason := range resp.Assessment.Reasons {
		fmt.Fprintf(out, " - %s\n", reason)
	}

	if resp.Execution == nil {
		if resp.Outcome == domain.OutcomeRejected {
			fmt.Fprintln(out, "\nNot executed: confirmation declined.")
		} else {
			fmt.Fprintln(out, "\nNot executed.")
		}
		return
	}

	if resp.Execution.Stdout != "" {
		fmt.Fprintln(out, "\nstdout:")
		fmt.Fprintln(out, strings.TrimRight(resp.Execution.Stdout, "\n"))
	}
	if resp.Execution.Stderr != "" {
		fmt.Fprintln(out, "\nstderr:")
		fmt.Fprintln(out, strings.TrimRight(resp.Execution.Stderr, "\n"))
	}
	if resp.Outcome == domain.OutcomeExecutionFailed {
		fmt.Fprintf(out, "\nExited %d after %dms.\n", resp.Execution.ExitCode, resp.Execution.DurationMS)
	}
}

// RenderHistory prints remembered turns, oldest first, one line each.
func RenderHistory(out io.Writer, turns []domain.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "No turns remembered.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, turn := range turns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			humanize.Time(turn.Timestamp),
			turn.Outcome,
			turn.Intent,
			turn.Command,
		)
	}
	w.Flush()
}

// RenderHosts prints every remembered host profile with its probed facts.
func RenderHosts(out io.Writer, profiles []domain.HostProfile) {
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No hosts remembered yet. Run `opspilot shell user@host` to start one.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HOST\tOS\tTURNS\tLAST SEEN")
	for _, profile := range profiles {
		os := profile.Facts.OS
		if os == "" {
			os = "-"
		}
		fmt.Fprintf(w, "%s@%s:%d\t%s\t%d\t%s\n",
			profile.Key.User, profile.Key.Address, profile.Key.Port,
			os,
			len(profile.Turns),
			humanize.Time(profile.LastSeen),
		)
	}
	w.Flush()
}

// RenderFacts prints the probed environment of one host.
func RenderFacts(out io.Writer, key domain.HostKey, facts domain.HostFacts) {
	fmt.Fprintf(out, "Host %s@%s:%d\n", key.User, key.Address, key.Port)
	if facts.Empty() {
		fmt.Fprintln(out, "  no facts probed yet")
		return
	}
	if facts.OS != "" {
		fmt.Fprintf(out, "  OS:     %s\n", facts.OS)
	}
	if facts.Kernel != "" {
		fmt.Fprintf(out, "  Kernel: %s\n", facts.Kernel)
	}
	if facts.CPUModel != "" {
		fmt.Fprintf(out, "  CPU:    %s\n", facts.CPUModel)
	}
	if facts.MemoryTotal != "" {
		fmt.Fprintf(out, "  Memory: %s\n", facts.MemoryTotal)
	}
}

// RenderHelp prints the local command table grouped by category, so the
// operator can see what resolves without a provider round trip.
func RenderHelp(out io.Writer, entries []domain.CommandEntry) {
	byCategory := map[string][]domain.CommandEntry{}
	for _, entry := range entries {
		category := entry.Category
		if category == "" {
			category = "general"
		}
		byCategory[category] = append(byCategory[category], entry)
	}
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		fmt.Fprintf(out, "%s:\n", category)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, entry := range byCategory[category] {
			description := entry.Description
			if description == "" {
				description = entry.Command
			}
			fmt.Fprintf(w, "  %s\t%s\n", firstTrigger(entry), description)
		}
		w.Flush()
		fmt.Fprintln(out)
	}
}

func firstTrigger(entry domain.CommandEntry) string {
	if len(entry.Triggers) == 0 || len(entry.Triggers[0]) == 0 {
		return entry.Command
	}
	return strings.Join(entry.Triggers[0], " ")
}

// RenderDoctorReport prints diagnostics one line per check.
func RenderDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n", strings.ToUpper(string(check.Status)), check.Name, check.Details)
	}
	if report.Failed() {
		fmt.Fprintln(out, "\nSome checks failed.")
	} else {
		fmt.Fprintln(out, "\nAll checks passed.")
	}
}
