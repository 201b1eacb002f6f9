package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/pkg/logger"
	"github.com/opsforge/opspilot/internal/ports"
)

type stubMatcher struct {
	cmd           domain.ResolvedCommand
	ok            bool
	entries       []domain.CommandEntry
	gotNormalized string
}

func (m *stubMatcher) Match(normalized string) (domain.ResolvedCommand, bool) {
	m.gotNormalized = normalized
	return m.cmd, m.ok
}

func (m *stubMatcher) Entries() []domain.CommandEntry { return m.entries }

type stubClassifier struct {
	tiers map[string]domain.RiskTier
}

func (c *stubClassifier) Evaluate(command string) domain.RiskAssessment {
	tier, ok := c.tiers[command]
	if !ok {
		tier = domain.RiskSafe
	}
	assessment := domain.RiskAssessment{Tier: tier}
	if tier != domain.RiskSafe {
		assessment.Rules = []string{"stub-rule"}
		assessment.Reasons = []string{"stubbed as " + string(tier)}
	}
	return assessment
}

type providerReply struct {
	resp ports.ProviderResponse
	err  error
}

type stubProvider struct {
	name    string
	replies []providerReply
	calls   int32
	gotReq  ports.ProviderRequest
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Generate(_ context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	n := atomic.AddInt32(&p.calls, 1)
	p.gotReq = req
	idx := int(n) - 1
	if idx >= len(p.replies) {
		idx = len(p.replies) - 1
	}
	if idx < 0 {
		return ports.ProviderResponse{}, errors.New("stub provider has no replies")
	}
	reply := p.replies[idx]
	return reply.resp, reply.err
}

type stubFactory struct {
	providers  map[string]*stubProvider
	resolveErr map[string]error
}

func (f *stubFactory) ForConfig(cfg domain.ProviderConfig) (ports.Provider, error) {
	p, ok := f.providers[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("no stub for provider %s", cfg.Name)
	}
	return p, nil
}

func (f *stubFactory) ResolveDefaults(cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	if err, ok := f.resolveErr[cfg.Name]; ok {
		return domain.ProviderConfig{}, err
	}
	return cfg, nil
}

type recordingMemory struct {
	mu        sync.Mutex
	turns     map[string][]domain.Turn
	facts     map[string]domain.HostFacts
	recent    []domain.Turn
	appendErr error
}

func newRecordingMemory() *recordingMemory {
	return &recordingMemory{turns: map[string][]domain.Turn{}, facts: map[string]domain.HostFacts{}}
}

func (m *recordingMemory) Append(key domain.HostKey, turn domain.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.turns[key.String()] = append(m.turns[key.String()], turn)
	return nil
}

func (m *recordingMemory) RecentContext(domain.HostKey, int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recent, nil
}

func (m *recordingMemory) Profile(key domain.HostKey) (domain.HostProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	facts, ok := m.facts[key.String()]
	if !ok {
		return domain.HostProfile{}, domain.ErrHostUnknown
	}
	return domain.HostProfile{Key: key, Facts: facts}, nil
}

func (m *recordingMemory) RecordFacts(key domain.HostKey, facts domain.HostFacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.facts[key.String()] = facts
	return nil
}

func (m *recordingMemory) Hosts() ([]domain.HostProfile, error) { return nil, nil }

func (m *recordingMemory) Search(domain.HostKey, string) ([]domain.Turn, error) { return nil, nil }

func (m *recordingMemory) Forget(key domain.HostKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, key.String())
	return nil
}

func (m *recordingMemory) recorded(key domain.HostKey) []domain.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Turn(nil), m.turns[key.String()]...)
}

type stubGateway struct {
	result domain.ExecutionResult
	err    error
	delay  time.Duration

	calls        int32
	inFlight     int32
	maxSeen      int32
	gotCommand   string
	ctxCancelled bool
}

func (g *stubGateway) Execute(ctx context.Context, _ ports.RemoteSession, command string) (domain.ExecutionResult, error) {
	atomic.AddInt32(&g.calls, 1)
	g.ctxCancelled = ctx.Err() != nil
	now := atomic.AddInt32(&g.inFlight, 1)
	for {
		max := atomic.LoadInt32(&g.maxSeen)
		if now <= max || atomic.CompareAndSwapInt32(&g.maxSeen, max, now) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	g.gotCommand = command
	atomic.AddInt32(&g.inFlight, -1)
	return g.result, g.err
}

type stubSession struct{}

func (stubSession) Run(context.Context, string) (domain.ExecutionResult, error) {
	return domain.ExecutionResult{}, nil
}

type stubPrompter struct {
	approve   bool
	err       error
	enabled   bool
	onConfirm func()

	calls      int32
	gotCommand string
	gotTier    domain.RiskTier
}

func (p *stubPrompter) Confirm(command string, assessment domain.RiskAssessment) (bool, error) {
	atomic.AddInt32(&p.calls, 1)
	p.gotCommand = command
	p.gotTier = assessment.Tier
	if p.onConfirm != nil {
		p.onConfirm()
	}
	return p.approve, p.err
}

func (p *stubPrompter) Enabled() bool { return p.enabled }

type fixture struct {
	matcher    *stubMatcher
	classifier *stubClassifier
	primary    *stubProvider
	backup     *stubProvider
	memory     *recordingMemory
	gateway    *stubGateway
	prompter   *stubPrompter
	service    *ResolverService
}

func newFixture() *fixture {
	f := &fixture{
		matcher:    &stubMatcher{},
		classifier: &stubClassifier{tiers: map[string]domain.RiskTier{}},
		primary:    &stubProvider{name: "primary"},
		backup:     &stubProvider{name: "backup"},
		memory:     newRecordingMemory(),
		gateway:    &stubGateway{result: domain.ExecutionResult{Stdout: "ok", ExitCode: 0, DurationMS: 3}},
		prompter:   &stubPrompter{approve: true, enabled: true},
	}
	f.service = &ResolverService{
		Config: domain.Config{
			DefaultProvider:   "primary",
			FallbackProviders: []string{"backup"},
			Providers: []domain.ProviderConfig{
				{Name: "primary", Kind: domain.ProviderKindOpenAI, TimeoutSeconds: 1},
				{Name: "backup", Kind: domain.ProviderKindOllama, TimeoutSeconds: 1},
			},
		},
		Matcher:    f.matcher,
		Classifier: f.classifier,
		Factory:    &stubFactory{providers: map[string]*stubProvider{"primary": f.primary, "backup": f.backup}},
		Memory:     f.memory,
		Gateway:    f.gateway,
		Prompter:   f.prompter,
		Logger:     logger.NewNop(),
	}
	return f
}

func testHost() domain.HostKey {
	return domain.HostKey{Address: "192.168.1.10", Port: 22, User: "root"}
}

func request(intent string) domain.TurnRequest {
	return domain.TurnRequest{Host: testHost(), RawIntent: intent}
}

func timeoutErr(name string) error {
	return fmt.Errorf("%s: %v: %w", name, context.DeadlineExceeded, domain.ErrProviderTimeout)
}

func unavailableErr(name string) error {
	return fmt.Errorf("%s: 503: %w", name, domain.ErrProviderUnavailable)
}

func TestResolverLocalMatchSkipsProviders(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "df -h", Origin: domain.OriginLocalMatch}

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("check disk space"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resp.Resolved.Origin != domain.OriginLocalMatch {
		t.Fatalf("origin = %q, want local match", resp.Resolved.Origin)
	}
	if got := atomic.LoadInt32(&f.primary.calls); got != 0 {
		t.Fatalf("provider consulted %d times for a local match", got)
	}
	if f.gateway.gotCommand != "df -h" {
		t.Fatalf("executed %q, want df -h", f.gateway.gotCommand)
	}
}

func TestResolverNormalizesIntentForMatching(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "free -h", Origin: domain.OriginLocalMatch}

	if _, err := f.service.Resolve(context.Background(), stubSession{}, request("  Check   MEMORY  usage ")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.matcher.gotNormalized != "check memory usage" {
		t.Fatalf("matcher saw %q, want the normalized form", f.matcher.gotNormalized)
	}
}

func TestResolverSafeCommandNeedsNoConfirmation(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.prompter.calls); got != 0 {
		t.Fatalf("prompter consulted %d times for a safe command", got)
	}
	if resp.Outcome != domain.OutcomeExecuted {
		t.Fatalf("outcome = %q, want executed", resp.Outcome)
	}
	if !resp.Recorded {
		t.Fatal("executed turn was not recorded")
	}
}

func TestResolverDestructiveGateApprovedExecutes(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "rm -rf /var/cache/app"}}}
	f.classifier.tiers["rm -rf /var/cache/app"] = domain.RiskDestructive

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("clear the app cache"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.prompter.calls); got != 1 {
		t.Fatalf("prompter consulted %d times, want 1", got)
	}
	if f.prompter.gotTier != domain.RiskDestructive {
		t.Fatalf("prompter saw tier %q", f.prompter.gotTier)
	}
	if f.prompter.gotCommand != "rm -rf /var/cache/app" {
		t.Fatalf("prompter saw command %q", f.prompter.gotCommand)
	}
	if resp.Resolved.Risk != domain.RiskDestructive {
		t.Fatalf("resolved risk = %q", resp.Resolved.Risk)
	}
	if resp.Outcome != domain.OutcomeExecuted {
		t.Fatalf("outcome = %q, want executed after approval", resp.Outcome)
	}
}

func TestResolverRejectionRecordsWithoutExecuting(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "systemctl stop nginx"}}}
	f.classifier.tiers["systemctl stop nginx"] = domain.RiskSensitive
	f.prompter.approve = false

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("stop the web server"))
	if !errors.Is(err, domain.ErrConfirmationRejected) {
		t.Fatalf("err = %v, want ErrConfirmationRejected", err)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times after rejection", got)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 {
		t.Fatalf("recorded %d turns, want the rejection", len(turns))
	}
	if turns[0].Outcome != domain.OutcomeRejected {
		t.Fatalf("recorded outcome = %q, want rejected", turns[0].Outcome)
	}
	if resp.Outcome != domain.OutcomeRejected || !resp.Recorded {
		t.Fatalf("response = %+v, want rejected and recorded", resp)
	}
}

func TestResolverNonInteractiveDeclines(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "systemctl restart nginx"}}}
	f.classifier.tiers["systemctl restart nginx"] = domain.RiskSensitive
	f.prompter.enabled = false

	_, err := f.service.Resolve(context.Background(), stubSession{}, request("restart the web server"))
	if !errors.Is(err, domain.ErrConfirmationRejected) {
		t.Fatalf("err = %v, want ErrConfirmationRejected when no prompt is possible", err)
	}
	if got := atomic.LoadInt32(&f.prompter.calls); got != 0 {
		t.Fatalf("disabled prompter was still consulted %d times", got)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times without confirmation", got)
	}
}

func TestResolverRetriesTimeoutExactlyOnce(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{
		{err: timeoutErr("primary")},
		{resp: ports.ProviderResponse{Command: "uptime"}},
	}

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.primary.calls); got != 2 {
		t.Fatalf("primary called %d times, want original plus one retry", got)
	}
	if got := atomic.LoadInt32(&f.backup.calls); got != 0 {
		t.Fatalf("backup called %d times, chain should not advance", got)
	}
	if resp.Provider != "primary" || resp.Resolved.Origin != domain.OriginAIGenerated {
		t.Fatalf("response = %+v, want primary/ai_generated", resp)
	}
}

func TestResolverFailsOverAfterSecondTimeout(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{
		{err: timeoutErr("primary")},
		{err: timeoutErr("primary")},
	}
	f.backup.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.primary.calls); got != 2 {
		t.Fatalf("primary called %d times, want exactly 2", got)
	}
	if got := atomic.LoadInt32(&f.backup.calls); got != 1 {
		t.Fatalf("backup called %d times, want 1", got)
	}
	if resp.Provider != "backup" {
		t.Fatalf("provider = %q, want backup", resp.Provider)
	}
}

func TestResolverUnavailableSkipsRetry(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{err: unavailableErr("primary")}}
	f.backup.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}

	if _, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.primary.calls); got != 1 {
		t.Fatalf("unavailable provider retried: %d calls", got)
	}
}

func TestResolverNoResolutionRecordsNothing(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{err: unavailableErr("primary")}}
	f.backup.replies = []providerReply{{err: unavailableErr("backup")}}

	_, err := f.service.Resolve(context.Background(), stubSession{}, request("do something"))
	if !errors.Is(err, domain.ErrNoResolution) {
		t.Fatalf("err = %v, want ErrNoResolution", err)
	}
	if turns := f.memory.recorded(testHost()); len(turns) != 0 {
		t.Fatalf("unresolved turn was recorded: %+v", turns)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times with nothing resolved", got)
	}
}

func TestResolverProviderOverrideBypassesChain(t *testing.T) {
	f := newFixture()
	f.backup.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}

	req := request("how long has it been up")
	req.Provider = "backup"
	resp, err := f.service.Resolve(context.Background(), stubSession{}, req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := atomic.LoadInt32(&f.primary.calls); got != 0 {
		t.Fatalf("default provider called %d times despite override", got)
	}
	if resp.Provider != "backup" {
		t.Fatalf("provider = %q, want backup", resp.Provider)
	}
}

func TestResolverExecutionFailureRecorded(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}
	f.gateway.err = fmt.Errorf("session dropped: %w", domain.ErrExecutionTransport)

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if !errors.Is(err, domain.ErrExecutionTransport) {
		t.Fatalf("err = %v, want the gateway failure", err)
	}
	if resp.Outcome != domain.OutcomeExecutionFailed {
		t.Fatalf("outcome = %q, want execution_failed", resp.Outcome)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 || turns[0].Outcome != domain.OutcomeExecutionFailed {
		t.Fatalf("recorded turns = %+v, want one failed turn", turns)
	}
}

func TestResolverNonZeroExitIsFailedOutcome(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "grep root /etc/nothing"}}}
	f.gateway.result = domain.ExecutionResult{Stderr: "grep: /etc/nothing: No such file", ExitCode: 2}

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("find root in nothing"))
	if err != nil {
		t.Fatalf("a command that ran and exited non-zero is not an engine error, got %v", err)
	}
	if resp.Outcome != domain.OutcomeExecutionFailed {
		t.Fatalf("outcome = %q, want execution_failed", resp.Outcome)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 || turns[0].ExitCode != 2 {
		t.Fatalf("recorded turns = %+v, want exit code 2", turns)
	}
}

func TestResolverNoExecuteStopsAfterClassification(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "rm -rf /var/cache/app"}}}
	f.classifier.tiers["rm -rf /var/cache/app"] = domain.RiskDestructive

	req := request("clear the app cache")
	req.NoExecute = true
	resp, err := f.service.Resolve(context.Background(), stubSession{}, req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resp.Assessment.Tier != domain.RiskDestructive {
		t.Fatalf("assessment tier = %q, classification must still run", resp.Assessment.Tier)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times in no-execute mode", got)
	}
	if got := atomic.LoadInt32(&f.prompter.calls); got != 0 {
		t.Fatalf("prompter consulted %d times in no-execute mode", got)
	}
	if resp.Recorded || len(f.memory.recorded(testHost())) != 0 {
		t.Fatal("no-execute turn must not be recorded")
	}
}

func TestResolverEmptyIntent(t *testing.T) {
	f := newFixture()
	_, err := f.service.Resolve(context.Background(), stubSession{}, request("   "))
	if !errors.Is(err, domain.ErrEmptyIntent) {
		t.Fatalf("err = %v, want ErrEmptyIntent", err)
	}
}

func TestResolverMemoryFailureDoesNotKillTurn(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}
	f.memory.appendErr = errors.New("disk full")

	resp, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resp.Outcome != domain.OutcomeExecuted {
		t.Fatalf("outcome = %q, want executed", resp.Outcome)
	}
	if resp.Recorded {
		t.Fatal("Recorded = true although the append failed")
	}
}

func TestResolverPassesHostContextToProvider(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}
	f.memory.facts[testHost().String()] = domain.HostFacts{OS: "Debian GNU/Linux 12"}
	f.memory.recent = []domain.Turn{{Intent: "check disk", Command: "df -h", Outcome: domain.OutcomeExecuted}}

	if _, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.primary.gotReq.Host.Facts.OS != "Debian GNU/Linux 12" {
		t.Fatalf("provider saw facts %+v", f.primary.gotReq.Host.Facts)
	}
	if len(f.primary.gotReq.Host.RecentTurns) != 1 {
		t.Fatalf("provider saw %d recent turns, want 1", len(f.primary.gotReq.Host.RecentTurns))
	}
	if f.primary.gotReq.Intent != "how long has it been up" {
		t.Fatalf("provider saw intent %q", f.primary.gotReq.Intent)
	}
}

func TestResolverTruncatesRecordedOutput(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{resp: ports.ProviderResponse{Command: "journalctl -n 200"}}}
	f.gateway.result = domain.ExecutionResult{Stdout: strings.Repeat("x", 2000), ExitCode: 0}

	if _, err := f.service.Resolve(context.Background(), stubSession{}, request("show recent logs")); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 {
		t.Fatalf("recorded %d turns", len(turns))
	}
	if got := len([]rune(turns[0].Output)); got != domain.OutputExcerptLimit {
		t.Fatalf("stored output length = %d, want %d", got, domain.OutputExcerptLimit)
	}
}

func TestResolverCancelledTurn(t *testing.T) {
	f := newFixture()
	f.primary.replies = []providerReply{{err: context.Canceled}}
	f.backup.replies = []providerReply{{resp: ports.ProviderResponse{Command: "uptime"}}}

	_, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
	if !errors.Is(err, domain.ErrTurnCancelled) {
		t.Fatalf("err = %v, want ErrTurnCancelled", err)
	}
	if got := atomic.LoadInt32(&f.backup.calls); got != 0 {
		t.Fatalf("chain advanced to backup %d times after cancellation", got)
	}
	if turns := f.memory.recorded(testHost()); len(turns) != 0 {
		t.Fatalf("cancelled turn was recorded: %+v", turns)
	}
}

func TestResolverCancelledBeforeGateDeclines(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "systemctl restart nginx", Origin: domain.OriginLocalMatch}
	f.classifier.tiers["systemctl restart nginx"] = domain.RiskSensitive

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := f.service.Resolve(ctx, stubSession{}, request("restart the web server"))
	if !errors.Is(err, domain.ErrConfirmationRejected) {
		t.Fatalf("err = %v, want ErrConfirmationRejected", err)
	}
	if got := atomic.LoadInt32(&f.prompter.calls); got != 0 {
		t.Fatalf("prompter consulted %d times on a cancelled turn", got)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times on a cancelled turn", got)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 || turns[0].Outcome != domain.OutcomeRejected {
		t.Fatalf("recorded turns = %+v, want one rejection", turns)
	}
	if resp.Outcome != domain.OutcomeRejected {
		t.Fatalf("outcome = %q, want rejected", resp.Outcome)
	}
}

func TestResolverCancelDuringPromptDeclines(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "systemctl stop nginx", Origin: domain.OriginLocalMatch}
	f.classifier.tiers["systemctl stop nginx"] = domain.RiskSensitive

	ctx, cancel := context.WithCancel(context.Background())
	f.prompter.approve = true
	f.prompter.onConfirm = cancel

	_, err := f.service.Resolve(ctx, stubSession{}, request("stop the web server"))
	if !errors.Is(err, domain.ErrConfirmationRejected) {
		t.Fatalf("err = %v, want ErrConfirmationRejected", err)
	}
	if got := atomic.LoadInt32(&f.gateway.calls); got != 0 {
		t.Fatalf("gateway ran %d times after a mid-prompt cancel", got)
	}
	turns := f.memory.recorded(testHost())
	if len(turns) != 1 || turns[0].Outcome != domain.OutcomeRejected {
		t.Fatalf("recorded turns = %+v, want one rejection", turns)
	}
}

func TestResolverExecutionDetachedFromCancel(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "uptime", Origin: domain.OriginLocalMatch}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := f.service.Resolve(ctx, stubSession{}, request("how long has it been up"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if f.gateway.ctxCancelled {
		t.Fatal("execution context inherited the operator cancel")
	}
	if resp.Outcome != domain.OutcomeExecuted || !resp.Recorded {
		t.Fatalf("response = %+v, want executed and recorded", resp)
	}
}

func TestResolverSerializesTurnsPerHost(t *testing.T) {
	f := newFixture()
	f.matcher.ok = true
	f.matcher.cmd = domain.ResolvedCommand{Command: "uptime", Origin: domain.OriginLocalMatch}
	f.gateway.delay = 20 * time.Millisecond

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := f.service.Resolve(context.Background(), stubSession{}, request("how long has it been up"))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent resolve: %v", err)
	}
	if max := atomic.LoadInt32(&f.gateway.maxSeen); max != 1 {
		t.Fatalf("observed %d concurrent executions on one host, want 1", max)
	}
	if turns := f.memory.recorded(testHost()); len(turns) != 4 {
		t.Fatalf("recorded %d turns, want 4", len(turns))
	}
}
