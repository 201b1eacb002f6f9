package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// ResolverService turns one natural-language intent into at most one
// executed command. Stages run in a fixed order: recall host memory,
// resolve (local table first, then the provider chain), classify, gate,
// execute, record. Turns on the same host are serialized; turns on
// different hosts run independently.
type ResolverService struct {
	Config     domain.Config
	Matcher    ports.Matcher
	Classifier ports.Classifier
	Factory    ports.ProviderFactory
	Memory     ports.MemoryStore
	Gateway    ports.Gateway
	Prompter   ports.ConfirmationPrompter
	Logger     ports.Logger

	mu        sync.Mutex
	turnLocks map[string]*sync.Mutex
}

// Resolve processes a single turn against the host behind session.
func (s *ResolverService) Resolve(ctx context.Context, session ports.RemoteSession, req domain.TurnRequest) (domain.TurnResponse, error) {
	if s.Matcher == nil || s.Classifier == nil || s.Factory == nil ||
		s.Memory == nil || s.Gateway == nil || s.Logger == nil {
		return domain.TurnResponse{}, errors.New("services.ResolverService dependencies not satisfied")
	}

	intent := domain.NewIntent(req.RawIntent)
	if intent.Empty() {
		return domain.TurnResponse{}, domain.ErrEmptyIntent
	}

	unlock := s.lockHost(req.Host)
	defer unlock()

	hostCtx := s.hostContext(req.Host)
	resolved, providerName, err := s.resolveCommand(ctx, intent, hostCtx, req.Provider)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.TurnResponse{}, fmt.Errorf("%v: %w", err, domain.ErrTurnCancelled)
		}
		return domain.TurnResponse{}, err
	}

	assessment := s.Classifier.Evaluate(resolved.Command)
	resolved = resolved.WithRisk(assessment.Tier, assessment.Rules)

	resp := domain.TurnResponse{
		Resolved:   resolved,
		Assessment: assessment,
		Provider:   providerName,
	}

	if req.NoExecute {
		return resp, nil
	}
	if session == nil {
		return resp, errors.New("no session for host " + req.Host.String())
	}

	// The gate. Confirmation is asked per turn, every turn; a yes given a
	// minute ago authorizes nothing now.
	if assessment.RequiresConfirmation() {
		approved, err := s.confirm(ctx, resolved.Command, assessment)
		if err != nil {
			resp.Outcome = domain.OutcomeRejected
			resp.Recorded = s.recordTurn(req.Host, intent, resolved, nil, domain.OutcomeRejected)
			return resp, fmt.Errorf("confirm: %w", err)
		}
		if !approved {
			resp.Outcome = domain.OutcomeRejected
			resp.Recorded = s.recordTurn(req.Host, intent, resolved, nil, domain.OutcomeRejected)
			return resp, domain.ErrConfirmationRejected
		}
	}

	// A started remote command cannot be unwound, so execution does not
	// inherit operator cancellation; it runs to completion or to its own
	// timeout, and the turn is recorded either way.
	result, execErr := s.Gateway.Execute(context.WithoutCancel(ctx), session, resolved.Command)
	resp.Execution = &result

	outcome := domain.OutcomeExecuted
	if execErr != nil || result.ExitCode != 0 {
		outcome = domain.OutcomeExecutionFailed
	}
	resp.Outcome = outcome
	resp.Recorded = s.recordTurn(req.Host, intent, resolved, &result, outcome)

	if execErr != nil {
		return resp, execErr
	}
	return resp, nil
}

// RememberFacts stores freshly probed host facts. Failures are logged and
// swallowed: a turn must never die because memory is unavailable.
func (s *ResolverService) RememberFacts(key domain.HostKey, facts domain.HostFacts) {
	if facts.Empty() {
		return
	}
	if err := s.Memory.RecordFacts(key, facts); err != nil {
		s.Logger.Warn("recording host facts failed", map[string]interface{}{
			"host":  key.String(),
			"error": err.Error(),
		})
	}
}

func (s *ResolverService) lockHost(key domain.HostKey) func() {
	s.mu.Lock()
	if s.turnLocks == nil {
		s.turnLocks = map[string]*sync.Mutex{}
	}
	lock, ok := s.turnLocks[key.String()]
	if !ok {
		lock = &sync.Mutex{}
		s.turnLocks[key.String()] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// hostContext assembles what the providers get to see: probed facts and
// the recent turn window. Both lookups are best effort.
func (s *ResolverService) hostContext(key domain.HostKey) domain.HostContext {
	hostCtx := domain.HostContext{Key: key}

	profile, err := s.Memory.Profile(key)
	switch {
	case err == nil:
		hostCtx.Facts = profile.Facts
	case !errors.Is(err, domain.ErrHostUnknown):
		s.Logger.Warn("host profile unavailable", map[string]interface{}{
			"host":  key.String(),
			"error": err.Error(),
		})
	}

	turns, err := s.Memory.RecentContext(key, s.Config.MemoryContextTurns())
	if err != nil {
		s.Logger.Warn("recent context unavailable", map[string]interface{}{
			"host":  key.String(),
			"error": err.Error(),
		})
		return hostCtx
	}
	hostCtx.RecentTurns = turns
	return hostCtx
}

// resolveCommand tries the local table, then walks the provider chain.
// A provider that times out gets exactly one more attempt; any other
// failure moves straight to the next provider in the chain.
func (s *ResolverService) resolveCommand(ctx context.Context, intent domain.Intent, hostCtx domain.HostContext, override string) (domain.ResolvedCommand, string, error) {
	if cmd, ok := s.Matcher.Match(intent.Normalized); ok {
		s.Logger.Debug("resolved from local table", map[string]interface{}{
			"command": cmd.Command,
		})
		return cmd, "", nil
	}

	chain, err := s.Config.ProviderChain(override)
	if err != nil {
		return domain.ResolvedCommand{}, "", err
	}

	preq := ports.ProviderRequest{Intent: intent.Raw, Host: hostCtx}
	var failures []error
	for _, pc := range chain {
		provider, err := s.Factory.ForConfig(pc)
		if err != nil {
			failures = append(failures, err)
			continue
		}

		resp, err := s.generateOnce(ctx, provider, pc, preq)
		if errors.Is(err, domain.ErrProviderTimeout) {
			s.Logger.Warn("provider timed out, retrying once", map[string]interface{}{
				"provider": pc.Name,
			})
			resp, err = s.generateOnce(ctx, provider, pc, preq)
		}
		if err == nil {
			return domain.ResolvedCommand{
				Command:   resp.Command,
				Origin:    domain.OriginAIGenerated,
				Rationale: resp.Rationale,
			}, pc.Name, nil
		}
		if errors.Is(err, context.Canceled) {
			return domain.ResolvedCommand{}, "", err
		}
		s.Logger.Warn("provider failed, moving down the chain", map[string]interface{}{
			"provider": pc.Name,
			"error":    err.Error(),
		})
		failures = append(failures, err)
	}

	joined := append([]error{domain.ErrNoResolution}, failures...)
	return domain.ResolvedCommand{}, "", errors.Join(joined...)
}

// generateOnce runs a single provider attempt under its own deadline, so a
// stuck vendor can never stall the whole chain.
func (s *ResolverService) generateOnce(ctx context.Context, provider ports.Provider, pc domain.ProviderConfig, preq ports.ProviderRequest) (ports.ProviderResponse, error) {
	timeout := s.Config.ProviderTimeoutSeconds()
	if pc.TimeoutSeconds > 0 {
		timeout = pc.TimeoutSeconds
	}
	attemptCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()
	return provider.Generate(attemptCtx, preq)
}

// confirm runs the gate. A cancelled turn, a missing or non-interactive
// prompter, and an explicit no all decline.
func (s *ResolverService) confirm(ctx context.Context, command string, assessment domain.RiskAssessment) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if s.Prompter == nil || !s.Prompter.Enabled() {
		s.Logger.Warn("confirmation required but no interactive prompt is available", map[string]interface{}{
			"tier": string(assessment.Tier),
		})
		return false, nil
	}
	approved, err := s.Prompter.Confirm(command, assessment)
	if err != nil {
		return false, err
	}
	// A cancel that raced the answer wins over the answer.
	if ctx.Err() != nil {
		return false, nil
	}
	return approved, nil
}

func (s *ResolverService) recordTurn(key domain.HostKey, intent domain.Intent, resolved domain.ResolvedCommand, exec *domain.ExecutionResult, outcome domain.TurnOutcome) bool {
	turn := domain.Turn{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Intent:    intent.Raw,
		Command:   resolved.Command,
		Origin:    resolved.Origin,
		Risk:      resolved.Risk,
		Outcome:   outcome,
	}
	if exec != nil {
		turn.ExitCode = exec.ExitCode
		turn.Output = domain.ExcerptOutput(exec.CombinedOutput())
		turn.DurationMS = exec.DurationMS
	}
	if err := s.Memory.Append(key, turn); err != nil {
		s.Logger.Warn("recording turn failed", map[string]interface{}{
			"host":  key.String(),
			"error": err.Error(),
		})
		return false
	}
	return true
}
