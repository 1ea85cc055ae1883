package provider

import (
	"context"
	"fmt"
	"log/slog"

	"briefbot/internal/credential"
	"briefbot/internal/domain"
)

// Factory creates providers by name, pulling their API keys from the
// credential manager.
type Factory struct {
	creds  *credential.Manager
	audit  domain.AuditLogger
	logger *slog.Logger
}

func NewFactory(creds *credential.Manager, audit domain.AuditLogger, logger *slog.Logger) *Factory {
	if audit == nil {
		audit = domain.NopAudit{}
	}
	return &Factory{creds: creds, audit: audit, logger: logger}
}

// Create returns a ready provider for the given name.
func (f *Factory) Create(ctx context.Context, name string) (domain.Provider, error) {
	switch name {
	case "groq", "":
		key, err := f.creds.Get(ctx, "groq")
		if err != nil {
			return nil, err
		}
		return NewGroq(key, f.audit, f.logger), nil
	default:
		return nil, domain.NewError(domain.KindProvider,
			fmt.Sprintf("unknown provider: %s", name),
			map[string]any{"provider": name, "supported": []string{"groq"}})
	}
}
