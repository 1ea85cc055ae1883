package domain

import "context"

// SearchService fetches news articles for a query within a frequency
// window.
type SearchService interface {
	SearchNews(ctx context.Context, query string, freq Frequency, maxResults int) ([]NewsArticle, error)
	Available() bool
}

// FileStore persists text content under a sandboxed base directory.
// Exists never propagates validation or traversal failures; it reports
// false instead, so probes are safe against arbitrary filenames.
type FileStore interface {
	Save(filename, content string) (string, error)
	Read(filename string) (string, error)
	Exists(filename string) bool
	Delete(filename string) (bool, error)
	BaseDir() string
}

// AuditLogger receives discrete security events. Implementations must
// not block materially; the core only depends on this contract, never
// on a concrete sink.
type AuditLogger interface {
	CredentialAccess(ctx context.Context, service string, success bool)
	FileOperation(ctx context.Context, op, filename string, success bool, errMsg string)
	ValidationFailure(ctx context.Context, kind, reason string, details map[string]any)
	SuspiciousActivity(ctx context.Context, activity, details string)
	InjectionAttempt(ctx context.Context, message, pattern string)
	ProviderRequest(ctx context.Context, model string, success bool, latencyMs int64, errMsg string)
}

// HistoryStore persists conversations and messages across restarts.
// LatestConversation returns nil without error when the user has no
// stored conversation yet.
type HistoryStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	LatestConversation(ctx context.Context, userID string) (*Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	AddMessage(ctx context.Context, convID string, msg Message) error
	GetMessages(ctx context.Context, convID string, limit int) ([]Message, error)
	DeleteConversation(ctx context.Context, id string) error
}

// NopAudit discards all audit events. Useful for tests and for
// callers that have auditing disabled.
type NopAudit struct{}

func (NopAudit) CredentialAccess(context.Context, string, bool)                    {}
func (NopAudit) FileOperation(context.Context, string, string, bool, string)       {}
func (NopAudit) ValidationFailure(context.Context, string, string, map[string]any) {}
func (NopAudit) SuspiciousActivity(context.Context, string, string)                {}
func (NopAudit) InjectionAttempt(context.Context, string, string)                  {}
func (NopAudit) ProviderRequest(context.Context, string, bool, int64, string)      {}

var _ AuditLogger = NopAudit{}
