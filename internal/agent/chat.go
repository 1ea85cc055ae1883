package agent

import (
	"context"
	"log/slog"

	"briefbot/internal/domain"
	"briefbot/internal/metrics"
	"briefbot/internal/validation"
)

// ChatResult is the outcome of one chat exchange.
type ChatResult struct {
	Content        string
	ConversationID string
	Model          string
	MessageCount   int
}

// ChatService validates a user message, runs it through the model in
// the context of the caller's conversation and returns the reply.
type ChatService struct {
	validator     *validation.Validator
	provider      domain.Provider
	conversations *Conversations
	audit         domain.AuditLogger
	logger        *slog.Logger
	modelCfg      domain.ModelConfig
	contextWindow int
}

func NewChatService(
	validator *validation.Validator,
	provider domain.Provider,
	conversations *Conversations,
	audit domain.AuditLogger,
	logger *slog.Logger,
	modelCfg domain.ModelConfig,
	contextWindow int,
) *ChatService {
	if audit == nil {
		audit = domain.NopAudit{}
	}
	if contextWindow <= 0 {
		contextWindow = 10
	}
	return &ChatService{
		validator:     validator,
		provider:      provider,
		conversations: conversations,
		audit:         audit,
		logger:        logger,
		modelCfg:      modelCfg,
		contextWindow: contextWindow,
	}
}

// Execute runs one round trip: validate, append, generate, append.
// Rejected input leaves the conversation untouched.
func (s *ChatService) Execute(ctx context.Context, sessionKey, raw string) (*ChatResult, error) {
	sanitized, err := s.validator.ValidateMessage(raw)
	if err != nil {
		reportRejection(ctx, s.audit, raw, err)
		return nil, err
	}

	sess := s.conversations.getOrCreate(ctx, sessionKey)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	conv := sess.conv

	userMsg, err := conv.AddUserMessage(sanitized)
	if err != nil {
		s.audit.ValidationFailure(ctx, string(domain.Kind(err)), err.Error(), nil)
		return nil, err
	}
	s.conversations.recordMessage(ctx, conv.ID, userMsg)
	metrics.MessagesTotal.Inc()

	reply, err := s.provider.Generate(ctx, conv.ContextWindow(s.contextWindow), s.modelCfg)
	if err != nil {
		return nil, err
	}

	assistantMsg, err := conv.AddAssistantMessage(reply.Content, reply.Metadata)
	if err != nil {
		// The user turn consumed the last slot; surface capacity rather
		// than silently dropping the reply.
		return nil, err
	}
	s.conversations.recordMessage(ctx, conv.ID, assistantMsg)
	metrics.MessagesTotal.Inc()

	model := s.modelCfg.Model
	if m, ok := reply.Metadata["model"].(string); ok && m != "" {
		model = m
	}
	return &ChatResult{
		Content:        reply.Content,
		ConversationID: conv.ID,
		Model:          model,
		MessageCount:   conv.MessageCount(),
	}, nil
}

// Clear resets the caller's conversation.
func (s *ChatService) Clear(ctx context.Context, sessionKey string) {
	s.conversations.Clear(ctx, sessionKey)
}

// reportRejection emits the audit event and metrics for a rejected
// input. Injection rejections always produce the injection event with
// the raw input and matched pattern, regardless of which service
// caught them.
func reportRejection(ctx context.Context, audit domain.AuditLogger, raw string, err error) {
	kind := domain.Kind(err)
	metrics.ValidationFailures.Inc()
	if kind == domain.KindPromptInjection {
		metrics.InjectionAttempts.Inc()
		pattern, _ := domain.Detail(err, "pattern")
		patternStr, _ := pattern.(string)
		audit.InjectionAttempt(ctx, raw, patternStr)
		return
	}
	audit.ValidationFailure(ctx, string(kind), err.Error(), nil)
}
