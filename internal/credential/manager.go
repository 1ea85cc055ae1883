// Package credential resolves API keys from the environment. Keys are
// never included in error details or log output.
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"briefbot/internal/domain"
)

// envVars maps service names to the environment variables holding
// their API keys.
var envVars = map[string]string{
	"groq":   "GROQ_API_KEY",
	"tavily": "TAVILY_API_KEY",
}

// Manager hands out API keys to adapters and records every access as
// an audit event.
type Manager struct {
	audit  domain.AuditLogger
	logger *slog.Logger
}

func NewManager(audit domain.AuditLogger, logger *slog.Logger) *Manager {
	if audit == nil {
		audit = domain.NopAudit{}
	}
	return &Manager{audit: audit, logger: logger}
}

// Get returns the API key for a service. The key itself never appears
// in the returned error or in logs.
func (m *Manager) Get(ctx context.Context, service string) (string, error) {
	name, ok := envVars[strings.ToLower(strings.TrimSpace(service))]
	if !ok {
		m.audit.CredentialAccess(ctx, service, false)
		return "", domain.NewError(domain.KindCredentialMissing,
			fmt.Sprintf("unknown service: %s", service),
			map[string]any{"service": service, "known_services": Services()})
	}

	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		m.audit.CredentialAccess(ctx, service, false)
		return "", domain.NewError(domain.KindCredentialMissing,
			fmt.Sprintf("missing API key for %s: set %s", service, name),
			map[string]any{"service": service, "env_var": name})
	}

	m.audit.CredentialAccess(ctx, service, true)
	return key, nil
}

// Validate reports whether a key is configured without returning it.
func (m *Manager) Validate(ctx context.Context, service string) bool {
	_, err := m.Get(ctx, service)
	return err == nil
}

// Services lists the service names the manager knows about.
func Services() []string {
	names := make([]string, 0, len(envVars))
	for name := range envVars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
