// Package provider contains LLM adapters. The only bundled adapter
// talks to Groq through its OpenAI-compatible endpoint.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"briefbot/internal/domain"
	"briefbot/internal/metrics"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider calls Groq chat completions.
type GroqProvider struct {
	client *openai.Client
	audit  domain.AuditLogger
	logger *slog.Logger
}

// NewGroq builds a provider around the given API key.
func NewGroq(apiKey string, audit domain.AuditLogger, logger *slog.Logger) *GroqProvider {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	if audit == nil {
		audit = domain.NopAudit{}
	}
	return &GroqProvider{
		client: openai.NewClientWithConfig(cfg),
		audit:  audit,
		logger: logger,
	}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Available() bool { return p.client != nil }

// Generate sends the conversation to the model and returns its reply.
func (p *GroqProvider) Generate(ctx context.Context, messages []domain.Message, cfg domain.ModelConfig) (domain.Message, error) {
	return p.generate(ctx, messages, nil, cfg)
}

// GenerateWithTools is like Generate but offers tools the model may
// call. Pending calls are attached to the reply metadata under
// "tool_calls" as a JSON array of {name, arguments} objects.
func (p *GroqProvider) GenerateWithTools(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition, cfg domain.ModelConfig) (domain.Message, error) {
	return p.generate(ctx, messages, tools, cfg)
}

func (p *GroqProvider) generate(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition, cfg domain.ModelConfig) (domain.Message, error) {
	if err := cfg.Validate(); err != nil {
		return domain.Message{}, err
	}
	if cfg.Model == "" {
		cfg.Model = domain.DefaultGroqModel
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    toChatMessages(messages),
		Temperature: float32(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = cfg.MaxTokens
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.doWithRetry(reqCtx, req, cfg.MaxRetries)
	latency := time.Since(start).Milliseconds()
	metrics.LLMRequestsTotal.Inc()

	if err != nil {
		p.audit.ProviderRequest(ctx, cfg.Model, false, latency, err.Error())
		return domain.Message{}, domain.WrapError(domain.KindProvider, "groq request failed", map[string]any{
			"model": cfg.Model,
		}, err)
	}
	if len(resp.Choices) == 0 {
		p.audit.ProviderRequest(ctx, cfg.Model, false, latency, "empty response")
		return domain.Message{}, domain.NewError(domain.KindProvider, "groq returned no choices", map[string]any{
			"model": cfg.Model,
		})
	}

	p.audit.ProviderRequest(ctx, cfg.Model, true, latency, "")

	choice := resp.Choices[0].Message
	meta := map[string]any{"model": cfg.Model}
	if len(choice.ToolCalls) > 0 {
		type pendingCall struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		}
		calls := make([]pendingCall, 0, len(choice.ToolCalls))
		for _, tc := range choice.ToolCalls {
			calls = append(calls, pendingCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments})
		}
		if data, err := json.Marshal(calls); err == nil {
			meta["tool_calls"] = string(data)
		}
	}

	// Tool-call responses legitimately have empty content.
	content := choice.Content
	if content == "" && len(choice.ToolCalls) == 0 {
		return domain.Message{}, domain.NewError(domain.KindProvider, "groq returned empty content", map[string]any{
			"model": cfg.Model,
		})
	}
	if content == "" {
		content = "(tool call)"
	}

	msg, err := domain.NewMessage(domain.RoleAssistant, content, meta)
	if err != nil {
		return domain.Message{}, domain.WrapError(domain.KindProvider, "invalid model reply", map[string]any{
			"model": cfg.Model,
		}, err)
	}
	return msg, nil
}

// doWithRetry retries transient failures with quadratic backoff and
// jitter. Only 5xx and 429 responses are retried.
func (p *GroqProvider) doWithRetry(ctx context.Context, req openai.ChatCompletionRequest, maxRetries int) (openai.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt)*time.Second +
				time.Duration(rand.Intn(500))*time.Millisecond
			p.logger.Warn("retrying groq request", "attempt", attempt, "backoff", backoff, "err", lastErr)
			select {
			case <-ctx.Done():
				return openai.ChatCompletionResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return openai.ChatCompletionResponse{}, err
		}
	}
	return openai.ChatCompletionResponse{}, fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// Transport-level failures (timeouts, resets) are worth a retry.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func toChatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

var _ domain.Provider = (*GroqProvider)(nil)
