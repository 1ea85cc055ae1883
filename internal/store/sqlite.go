// Package store persists chat history and security audit events in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"briefbot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.HistoryStore and domain.AuditLogger.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id           TEXT PRIMARY KEY,
		user_id      TEXT,
		max_messages INTEGER DEFAULT 100,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		metadata        TEXT,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS security_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event       TEXT NOT NULL,
		target      TEXT,
		success     INTEGER,
		pattern     TEXT,
		details     TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_security_events_time ON security_events(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// PruneHistory removes messages and conversations older than the
// retention window. Zero or negative retention disables pruning.
func (s *SQLiteStore) PruneHistory(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	return err
}

// --- domain.HistoryStore ---

func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversations (id, user_id, max_messages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.MaxMessages, conv.CreatedAt, conv.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) LatestConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, max_messages, created_at, updated_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY updated_at DESC LIMIT 1`, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.MaxMessages, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *SQLiteStore) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStore) AddMessage(ctx context.Context, convID string, msg domain.Message) error {
	var meta string
	if len(msg.Metadata) > 0 {
		data, err := json.Marshal(msg.Metadata)
		if err == nil {
			meta = string(data)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, convID, string(msg.Role), msg.Content, meta, msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now().UTC(), convID)
	return nil
}

func (s *SQLiteStore) GetMessages(ctx context.Context, convID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	// Last N messages, returned oldest first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, metadata, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at DESC LIMIT ?`, convID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var meta sql.NullString
		if err := rows.Scan(&m.ID, &role, &m.Content, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if meta.Valid && meta.String != "" {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(meta.String), &parsed); err == nil {
				m.Metadata = parsed
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	return err
}

// --- domain.AuditLogger ---

func (s *SQLiteStore) logEvent(ctx context.Context, event, target string, success bool, pattern, details string) {
	succ := 0
	if success {
		succ = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO security_events (event, target, success, pattern, details)
		 VALUES (?, ?, ?, ?, ?)`,
		event, target, succ, pattern, details,
	)
	if err != nil {
		s.logger.Error("cannot write audit event", "event", event, "err", err)
	}
}

func (s *SQLiteStore) CredentialAccess(ctx context.Context, service string, success bool) {
	s.logger.Info("credential access", "event", "credential_access", "service", service, "success", success)
	s.logEvent(ctx, "credential_access", service, success, "", "")
}

func (s *SQLiteStore) FileOperation(ctx context.Context, op, filename string, success bool, errMsg string) {
	if success {
		s.logger.Info("file operation", "event", "file_operation", "op", op, "target_file", filename)
	} else {
		s.logger.Error("file operation failed", "event", "file_operation", "op", op, "target_file", filename, "err", errMsg)
	}
	s.logEvent(ctx, "file_operation", op+":"+filename, success, "", errMsg)
}

func (s *SQLiteStore) ValidationFailure(ctx context.Context, kind, reason string, details map[string]any) {
	s.logger.Warn("validation failure", "event", "validation_failure", "kind", kind, "reason", reason)
	var detailStr string
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			detailStr = string(data)
		}
	}
	s.logEvent(ctx, "validation_failure", kind, false, "", reason+" "+detailStr)
}

func (s *SQLiteStore) SuspiciousActivity(ctx context.Context, activity, details string) {
	s.logger.Warn("suspicious activity", "event", "suspicious_activity", "activity", activity, "details", details)
	s.logEvent(ctx, "suspicious_activity", activity, false, "", details)
}

func (s *SQLiteStore) InjectionAttempt(ctx context.Context, message, pattern string) {
	// Only a truncated preview of the offending message is retained.
	// Truncation is by character so multibyte input stays valid UTF-8.
	preview := message
	if runes := []rune(message); len(runes) > 100 {
		preview = string(runes[:100])
	}
	s.logger.Warn("prompt injection attempt", "event", "injection_attempt", "pattern", pattern, "preview", preview)
	s.logEvent(ctx, "injection_attempt", preview, false, pattern, "")
}

func (s *SQLiteStore) ProviderRequest(ctx context.Context, model string, success bool, latencyMs int64, errMsg string) {
	if success {
		s.logger.Info("llm request", "event", "llm_request", "model", model, "latency_ms", latencyMs)
	} else {
		s.logger.Error("llm request failed", "event", "llm_request", "model", model, "err", errMsg)
	}
	s.logEvent(ctx, "llm_request", model, success, "", errMsg)
}

// EventCount returns how many audit events of the given kind have been
// recorded. Used by status reporting and tests.
func (s *SQLiteStore) EventCount(ctx context.Context, event string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_events WHERE event = ?`, event).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var (
	_ domain.HistoryStore = (*SQLiteStore)(nil)
	_ domain.AuditLogger  = (*SQLiteStore)(nil)
)
