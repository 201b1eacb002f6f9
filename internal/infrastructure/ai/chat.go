package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r chatCompletionResponse) firstContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// completionPayload is the JSON document providers are instructed to
// return. It carries no risk field; the classifier is the only authority
// on risk, whatever the model volunteers.
type completionPayload struct {
	Command     string `json:"command"`
	Description string `json:"description"`
	Explanation string `json:"explanation"`
}

// chatProvider speaks the OpenAI-compatible chat completion dialect.
type chatProvider struct {
	cfg        domain.ProviderConfig
	httpClient *http.Client
}

func newChatProvider(cfg domain.ProviderConfig, client *http.Client) ports.Provider {
	return &chatProvider{cfg: cfg, httpClient: client}
}

func (p *chatProvider) Name() string {
	return p.cfg.Name
}

// Generate implements ports.Provider. One request, one parse, no retries;
// failures map onto the three provider error kinds.
func (p *chatProvider) Generate(ctx context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	messages, err := renderMessages(req)
	if err != nil {
		return ports.ProviderResponse{}, err
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    messages,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: domain.CompletionTemperature,
	})
	if err != nil {
		return ports.ProviderResponse{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("%s: bad endpoint: %w", p.cfg.Name, domain.ErrProviderUnavailable)
	}
	httpReq.Header.Set("content-type", "application/json")
	if err := p.setAuthHeader(httpReq); err != nil {
		return ports.ProviderResponse{}, err
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ports.ProviderResponse{}, p.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ports.ProviderResponse{}, fmt.Errorf("%s: %s: %w", p.cfg.Name, resp.Status, domain.ErrProviderUnavailable)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("%s: decode response: %w", p.cfg.Name, domain.ErrProviderMalformed)
	}

	return parseCompletion(p.cfg.Name, completion.firstContent())
}

// setAuthHeader reads the credential from the configured environment
// variable. The value goes into the request header and nowhere else.
func (p *chatProvider) setAuthHeader(req *http.Request) error {
	if !RequiresCredential(p.cfg) {
		return nil
	}
	key := os.Getenv(p.cfg.AuthEnvVar)
	if key == "" {
		return fmt.Errorf("%s: missing credential, set %s: %w", p.cfg.Name, p.cfg.AuthEnvVar, domain.ErrProviderUnavailable)
	}
	req.Header.Set("authorization", "Bearer "+key)
	return nil
}

// classifyTransportError maps HTTP client failures onto the provider error
// kinds. Operator cancellation passes through untouched so the engine can
// tell an abandoned turn from a slow provider.
func (p *chatProvider) classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &urlErr) && urlErr.Timeout()) {
		return fmt.Errorf("%s: %v: %w", p.cfg.Name, err, domain.ErrProviderTimeout)
	}
	return fmt.Errorf("%s: %v: %w", p.cfg.Name, err, domain.ErrProviderUnavailable)
}

// parseCompletion extracts the structured payload, tolerating the fenced
// and prefixed shapes models actually reply with.
func parseCompletion(name, content string) (ports.ProviderResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ports.ProviderResponse{}, fmt.Errorf("%s: empty completion: %w", name, domain.ErrProviderMalformed)
	}
	cleaned := stripFences(content)

	var payload completionPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err == nil {
		command := strings.TrimSpace(payload.Command)
		if command == "" {
			return ports.ProviderResponse{}, fmt.Errorf("%s: completion without command: %w", name, domain.ErrProviderMalformed)
		}
		return ports.ProviderResponse{
			Command:   command,
			Rationale: joinRationale(payload.Description, payload.Explanation),
		}, nil
	}

	if cmd := extractCommandLine(cleaned); cmd != "" {
		return ports.ProviderResponse{Command: cmd}, nil
	}
	if line := firstLine(cleaned); line != "" && !strings.ContainsAny(line, "{}") {
		return ports.ProviderResponse{Command: line}, nil
	}
	return ports.ProviderResponse{}, fmt.Errorf("%s: unparseable completion: %w", name, domain.ErrProviderMalformed)
}

// stripFences unwraps a markdown code block, dropping a leading language
// tag line (json, sh, bash).
func stripFences(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}
	start := strings.Index(content, "```")
	rest := content[start+3:]
	end := strings.Index(rest, "```")
	if end == -1 {
		return content
	}
	block := rest[:end]
	if nl := strings.Index(block, "\n"); nl != -1 {
		switch strings.TrimSpace(block[:nl]) {
		case "", "json", "sh", "bash", "shell":
			block = block[nl+1:]
		}
	}
	return strings.TrimSpace(block)
}

// extractCommandLine looks for a "command:" prefixed line.
func extractCommandLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "command:") {
			return strings.TrimSpace(line[len("command:"):])
		}
	}
	return ""
}

func firstLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func joinRationale(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "; ")
}

var _ ports.Provider = (*chatProvider)(nil)
