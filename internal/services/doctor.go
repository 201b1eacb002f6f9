package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

const reachTimeout = 3 * time.Second

// DoctorService runs environment diagnostics: config, command table, risk
// rules, provider credentials and reachability, and the memory backend.
type DoctorService struct {
	ConfigProvider ports.ConfigProvider
	Matcher        ports.Matcher
	Classifier     ports.Classifier
	Factory        ports.ProviderFactory
	Memory         ports.MemoryStore
	// HTTPClient is used for endpoint probes; nil means a short default.
	HTTPClient *http.Client
}

// Run executes all checks and returns a report. Only a config that cannot
// be loaded is fatal; everything else degrades to warn or error entries.
func (s *DoctorService) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config", fmt.Sprintf("version %s, %d providers", cfg.ConfigFormatVersion, len(cfg.Providers))))

	checks = append(checks, s.tableCheck())
	checks = append(checks, s.rulesCheck())
	checks = append(checks, s.providerChecks(ctx, cfg)...)
	checks = append(checks, s.memoryCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *DoctorService) tableCheck() domain.HealthCheck {
	if s.Matcher == nil {
		return warn("Command table", "matcher not initialized")
	}
	entries := s.Matcher.Entries()
	if len(entries) == 0 {
		return fail("Command table", "no entries loaded")
	}
	return ok("Command table", fmt.Sprintf("%d commands loaded", len(entries)))
}

// rulesCheck is a self-test: grading a root delete as anything short of
// destructive means the rule set is broken and the gate cannot be trusted.
func (s *DoctorService) rulesCheck() domain.HealthCheck {
	if s.Classifier == nil {
		return warn("Risk rules", "classifier not initialized")
	}
	if got := s.Classifier.Evaluate("rm -rf /").Tier; got != domain.RiskDestructive {
		return fail("Risk rules", fmt.Sprintf("root delete graded %s", got))
	}
	if got := s.Classifier.Evaluate("ls").Tier; got != domain.RiskSafe {
		return fail("Risk rules", fmt.Sprintf("plain ls graded %s", got))
	}
	return ok("Risk rules", "sample commands grade as expected")
}

func (s *DoctorService) providerChecks(ctx context.Context, cfg domain.Config) []domain.HealthCheck {
	if s.Factory == nil {
		return []domain.HealthCheck{warn("Providers", "factory not initialized")}
	}

	checks := make([]domain.HealthCheck, 0, len(cfg.Providers)*2)
	resolved := make([]domain.ProviderConfig, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		full, err := s.Factory.ResolveDefaults(pc)
		if err != nil {
			checks = append(checks, fail("Provider "+pc.Name, err.Error()))
			continue
		}
		checks = append(checks, credentialCheck(full))
		resolved = append(resolved, full)
	}
	checks = append(checks, s.reachabilityChecks(ctx, resolved)...)
	return checks
}

// credentialCheck reports only whether the variable is set. The value
// itself never appears in any check.
func credentialCheck(pc domain.ProviderConfig) domain.HealthCheck {
	name := "Provider " + pc.Name
	if pc.AuthEnvVar == "" {
		return ok(name, "no credential required")
	}
	if os.Getenv(pc.AuthEnvVar) == "" {
		return warn(name, "set "+pc.AuthEnvVar)
	}
	return ok(name, pc.AuthEnvVar+" is set")
}

// reachabilityChecks probes every endpoint concurrently. Any HTTP response
// counts as reachable; auth failures are the credential check's business.
func (s *DoctorService) reachabilityChecks(ctx context.Context, providers []domain.ProviderConfig) []domain.HealthCheck {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: reachTimeout}
	}

	checks := make([]domain.HealthCheck, len(providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, pc := range providers {
		i, pc := i, pc
		g.Go(func() error {
			checks[i] = probeEndpoint(gctx, client, pc)
			return nil
		})
	}
	g.Wait()
	return checks
}

func probeEndpoint(ctx context.Context, client *http.Client, pc domain.ProviderConfig) domain.HealthCheck {
	name := "Provider " + pc.Name + " endpoint"
	if pc.Endpoint == "" {
		return warn(name, "no endpoint configured")
	}

	pctx, cancel := context.WithTimeout(ctx, reachTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pctx, http.MethodGet, pc.Endpoint, nil)
	if err != nil {
		return warn(name, fmt.Sprintf("bad endpoint %s", pc.Endpoint))
	}
	resp, err := client.Do(req)
	if err != nil {
		return warn(name, fmt.Sprintf("unreachable: %v", err))
	}
	resp.Body.Close()
	return ok(name, pc.Endpoint)
}

func (s *DoctorService) memoryCheck(cfg domain.Config) domain.HealthCheck {
	if s.Memory == nil {
		return warn("Memory", "store not initialized")
	}

	// A real write through the full backend is the only probe that means
	// anything; the scratch host is removed right after.
	probe := domain.HostKey{Address: "doctor.probe.invalid", Port: 1, User: "doctor"}
	turn := domain.Turn{
		ID:        "doctor-probe",
		Timestamp: time.Now().UTC(),
		Intent:    "memory write probe",
		Command:   "true",
		Origin:    domain.OriginLocalMatch,
		Risk:      domain.RiskSafe,
		Outcome:   domain.OutcomeExecuted,
	}
	if err := s.Memory.Append(probe, turn); err != nil {
		return fail("Memory", fmt.Sprintf("backend %s not writable: %v", cfg.MemoryBackendName(), err))
	}
	if err := s.Memory.Forget(probe); err != nil {
		return warn("Memory", fmt.Sprintf("probe cleanup failed: %v", err))
	}
	return ok("Memory", fmt.Sprintf("backend %s writable", cfg.MemoryBackendName()))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
