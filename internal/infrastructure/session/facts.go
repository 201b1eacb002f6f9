package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

const probeTimeout = 5 * time.Second

// DetectFacts probes the host once after connecting. Every probe is best
// effort: a fact that cannot be read stays empty and the session moves on.
func DetectFacts(ctx context.Context, session ports.RemoteSession) domain.HostFacts {
	return domain.HostFacts{
		OS:          detectOS(ctx, session),
		Kernel:      probe(ctx, session, "uname -r"),
		CPUModel:    detectCPU(ctx, session),
		MemoryTotal: detectMemory(ctx, session),
	}
}

func probe(ctx context.Context, session ports.RemoteSession, command string) string {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	result, err := session.Run(pctx, command)
	if err != nil || result.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(result.Stdout)
}

func detectOS(ctx context.Context, session ports.RemoteSession) string {
	line := probe(ctx, session, "grep -m1 '^PRETTY_NAME=' /etc/os-release")
	if name := trimQuotes(afterEquals(line)); name != "" {
		return name
	}
	return probe(ctx, session, "uname -s")
}

func detectCPU(ctx context.Context, session ports.RemoteSession) string {
	line := probe(ctx, session, "grep -m1 'model name' /proc/cpuinfo")
	return afterColon(line)
}

func detectMemory(ctx context.Context, session ports.RemoteSession) string {
	line := probe(ctx, session, "grep -m1 MemTotal /proc/meminfo")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	kb, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return ""
	}
	return humanize.IBytes(kb * 1024)
}

func afterEquals(line string) string {
	_, value, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func afterColon(line string) string {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}
