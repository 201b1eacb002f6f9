package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/opsforge/opspilot/internal/domain"
)

func TestRenderTurnExecuted(t *testing.T) {
	var out bytes.Buffer
	RenderTurn(&out, domain.TurnResponse{
		Resolved: domain.ResolvedCommand{
			Command: "df -h",
			Origin:  domain.OriginLocalMatch,
		},
		Assessment: domain.RiskAssessment{Tier: domain.RiskSafe},
		Execution: &domain.ExecutionResult{
			Stdout:   "Filesystem  Use%\n/dev/sda1   42%\n",
			ExitCode: 0,
		},
		Outcome:  domain.OutcomeExecuted,
		Recorded: true,
	})

	text := out.String()
	for _, want := range []string{"df -h", "local table", "SAFE", "/dev/sda1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderTurnFailedExecutionShowsExit(t *testing.T) {
	var out bytes.Buffer
	RenderTurn(&out, domain.TurnResponse{
		Resolved:   domain.ResolvedCommand{Command: "systemctl status nope", Origin: domain.OriginAIGenerated},
		Provider:   "deepseek",
		Assessment: domain.RiskAssessment{Tier: domain.RiskSafe},
		Execution:  &domain.ExecutionResult{Stderr: "Unit nope.service could not be found.", ExitCode: 4, DurationMS: 120},
		Outcome:    domain.OutcomeExecutionFailed,
		Recorded:   true,
	})

	text := out.String()
	for _, want := range []string{"provider deepseek", "stderr:", "Exited 4"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderTurnRejected(t *testing.T) {
	var out bytes.Buffer
	RenderTurn(&out, domain.TurnResponse{
		Resolved:   domain.ResolvedCommand{Command: "rm -rf /data", Origin: domain.OriginAIGenerated},
		Provider:   "deepseek",
		Assessment: domain.RiskAssessment{Tier: domain.RiskDestructive, Reasons: []string{"recursive forced delete"}},
		Outcome:    domain.OutcomeRejected,
		Recorded:   true,
	})

	text := out.String()
	if !strings.Contains(text, "confirmation declined") {
		t.Fatalf("rejected turn not reported:\n%s", text)
	}
	if !strings.Contains(text, "DESTRUCTIVE") {
		t.Fatalf("tier not shown:\n%s", text)
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	RenderHistory(&out, nil)
	if !strings.Contains(out.String(), "No turns remembered") {
		t.Fatalf("unexpected empty-history output: %q", out.String())
	}
}

func TestRenderHistoryListsTurns(t *testing.T) {
	var out bytes.Buffer
	RenderHistory(&out, []domain.Turn{
		{
			Timestamp: time.Now().Add(-2 * time.Hour),
			Intent:    "check disk space",
			Command:   "df -h",
			Outcome:   domain.OutcomeExecuted,
		},
	})
	text := out.String()
	for _, want := range []string{"check disk space", "df -h", "executed"} {
		if !strings.Contains(text, want) {
			t.Fatalf("history output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderHostsShowsProfile(t *testing.T) {
	var out bytes.Buffer
	RenderHosts(&out, []domain.HostProfile{
		{
			Key:      domain.HostKey{Address: "web1", Port: 22, User: "root"},
			Facts:    domain.HostFacts{OS: "Ubuntu 24.04 LTS"},
			Turns:    make([]domain.Turn, 3),
			LastSeen: time.Now().Add(-time.Minute),
		},
	})
	text := out.String()
	for _, want := range []string{"root@web1:22", "Ubuntu 24.04 LTS", "3"} {
		if !strings.Contains(text, want) {
			t.Fatalf("hosts output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderHelpGroupsByCategory(t *testing.T) {
	var out bytes.Buffer
	RenderHelp(&out, []domain.CommandEntry{
		{Category: "disk", Command: "df -h", Description: "disk usage", Triggers: [][]string{{"disk", "space"}}},
		{Category: "network", Command: "ss -tlnp", Description: "listening sockets", Triggers: [][]string{{"listening", "ports"}}},
	})
	text := out.String()
	diskAt := strings.Index(text, "disk:")
	netAt := strings.Index(text, "network:")
	if diskAt < 0 || netAt < 0 {
		t.Fatalf("categories missing:\n%s", text)
	}
	if diskAt > netAt {
		t.Fatalf("categories not sorted:\n%s", text)
	}
	if !strings.Contains(text, "disk space") {
		t.Fatalf("trigger keywords missing:\n%s", text)
	}
}

func TestRenderDoctorReport(t *testing.T) {
	var out bytes.Buffer
	RenderDoctorReport(&out, domain.HealthReport{Checks: []domain.HealthCheck{
		{Name: "Config", Status: domain.HealthOK, Details: "version 1, 2 providers"},
		{Name: "Provider deepseek credential", Status: domain.HealthError, Details: "DEEPSEEK_API_KEY not set"},
	}})
	text := out.String()
	if !strings.Contains(text, "[OK] Config") {
		t.Fatalf("ok line missing:\n%s", text)
	}
	if !strings.Contains(text, "[ERROR] Provider deepseek credential") {
		t.Fatalf("error line missing:\n%s", text)
	}
	if !strings.Contains(text, "Some checks failed") {
		t.Fatalf("failure summary missing:\n%s", text)
	}
}
