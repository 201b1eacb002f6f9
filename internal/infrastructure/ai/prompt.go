package ai

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// systemTemplate is the shared system prompt. It carries the probed host
// facts and the recent-turn digest so generated commands fit the target
// distribution and the ongoing session.
const systemTemplate = `You are opspilot, a careful Linux operations assistant.
Convert the operator's request into exactly one non-interactive shell
command for the target host.

Target host:
- OS: {{.OS}}
{{- if .Kernel}}
- Kernel: {{.Kernel}}
{{- end}}
{{- if .CPUModel}}
- CPU: {{.CPUModel}}
{{- end}}
{{- if .MemoryTotal}}
- Memory: {{.MemoryTotal}}
{{- end}}
{{- if .PackageHint}}
- Package manager: {{.PackageHint}}
{{- end}}
{{- if .History}}

Recent activity on this host:
{{.History}}
{{- end}}

Reply with one JSON object and nothing else:
{"command": "<shell command>", "description": "<one line, what it does>", "explanation": "<why it fits the request>"}
Prefer widely available tools. Never invent flags. Produce a single
command; chain with && only when strictly necessary.`

var systemPrompt = template.Must(template.New("system").Parse(systemTemplate))

type promptData struct {
	OS          string
	Kernel      string
	CPUModel    string
	MemoryTotal string
	PackageHint string
	History     string
}

// renderMessages builds the chat messages for one completion request.
func renderMessages(req ports.ProviderRequest) ([]chatMessage, error) {
	data := buildPromptData(req.Host)
	var buf bytes.Buffer
	if err := systemPrompt.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	return []chatMessage{
		{Role: "system", Content: strings.TrimSpace(buf.String())},
		{Role: "user", Content: req.Intent},
	}, nil
}

func buildPromptData(host domain.HostContext) promptData {
	osName := host.Facts.OS
	if osName == "" {
		osName = "unknown"
	}
	return promptData{
		OS:          osName,
		Kernel:      host.Facts.Kernel,
		CPUModel:    host.Facts.CPUModel,
		MemoryTotal: host.Facts.MemoryTotal,
		PackageHint: packageHint(host.Facts.OS),
		History:     historyDigest(host.RecentTurns),
	}
}

// packageHint maps the probed OS to its package manager so generated
// install and update commands match the distribution.
func packageHint(osName string) string {
	name := strings.ToLower(osName)
	switch {
	case strings.Contains(name, "ubuntu"), strings.Contains(name, "debian"):
		return "apt"
	case strings.Contains(name, "centos"), strings.Contains(name, "red hat"), strings.Contains(name, "rhel"):
		return "yum"
	case strings.Contains(name, "fedora"):
		return "dnf"
	case strings.Contains(name, "alpine"):
		return "apk"
	default:
		return ""
	}
}

// historyDigest renders the recent turns oldest first, tagged by outcome.
func historyDigest(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		marker := "ok"
		switch t.Outcome {
		case domain.OutcomeExecutionFailed:
			marker = "failed"
		case domain.OutcomeRejected:
			marker = "rejected"
		}
		fmt.Fprintf(&b, "- [%s] %s -> %s\n", marker, t.Intent, t.Command)
	}
	return strings.TrimSpace(b.String())
}
