// Package storage persists and retrieves text content under a single
// base directory, resistant to path traversal.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"briefbot/internal/domain"
	"briefbot/internal/metrics"
)

// filenamePattern mirrors the validator's allow-list but accepts
// uppercase letters: stored summaries come from trusted callers that
// may title-case names.
var filenamePattern = regexp.MustCompile(`(?i)^[a-z0-9_-]+\.md$`)

// SecureStorage restricts all file operations to a base directory.
// The syntactic filename rule alone is insufficient (resolution or
// symlinks can escape the sandbox), so the resolved path is checked
// against the base directory as well.
type SecureStorage struct {
	baseDir string
	audit   domain.AuditLogger
	logger  *slog.Logger
}

// New resolves baseDir to an absolute path and creates it (including
// parents) if absent.
func New(baseDir string, audit domain.AuditLogger, logger *slog.Logger) (*SecureStorage, error) {
	if baseDir == "" {
		baseDir = "./md"
	}
	resolved, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, "cannot resolve base directory", map[string]any{
			"base_dir": baseDir,
		}, err)
	}
	if err := os.MkdirAll(resolved, 0o700); err != nil {
		return nil, domain.WrapError(domain.KindStorage, "cannot create base directory", map[string]any{
			"base_dir": resolved,
		}, err)
	}
	if audit == nil {
		audit = domain.NopAudit{}
	}
	return &SecureStorage{baseDir: resolved, audit: audit, logger: logger}, nil
}

func (s *SecureStorage) BaseDir() string { return s.baseDir }

// resolve validates the filename and returns the resolved absolute
// path, rejecting anything that escapes the base directory. The
// containment check compares path segments via filepath.Rel rather
// than a raw string prefix, so a sibling directory that merely shares
// the base as a name prefix (e.g. /data/store vs /data/store-evil)
// stays out of bounds.
func (s *SecureStorage) resolve(filename string) (string, error) {
	if filename == "" {
		return "", domain.NewError(domain.KindInvalidFilename, "filename cannot be empty", nil)
	}
	if !filenamePattern.MatchString(filename) {
		return "", domain.NewError(domain.KindInvalidFilename,
			fmt.Sprintf("invalid filename: %s. Must be alphanumeric with .md extension", filename),
			map[string]any{"filename": filename})
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", domain.NewError(domain.KindInvalidFilename, "filename cannot contain path separators", map[string]any{
			"filename": filename,
		})
	}

	resolved, err := filepath.Abs(filepath.Clean(filepath.Join(s.baseDir, filename)))
	if err != nil {
		return "", domain.WrapError(domain.KindStorage, "cannot resolve path", map[string]any{
			"filename": filename,
		}, err)
	}

	rel, err := filepath.Rel(s.baseDir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		s.audit.SuspiciousActivity(context.Background(), "path traversal attempt",
			fmt.Sprintf("filename=%s resolved=%s", filename, resolved))
		metrics.TraversalBlocks.Inc()
		return "", domain.NewError(domain.KindPathTraversal, "path traversal attempt detected", map[string]any{
			"filename":      filename,
			"resolved_path": resolved,
		})
	}

	return resolved, nil
}

// Save writes content as UTF-8 under the base directory and restricts
// permissions to owner read/write. It returns the resolved path.
func (s *SecureStorage) Save(filename, content string) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		s.audit.FileOperation(context.Background(), "write", filename, false, err.Error())
		return "", err
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		s.audit.FileOperation(context.Background(), "write", filename, false, err.Error())
		return "", domain.WrapError(domain.KindStorage, "failed to save file", map[string]any{
			"filename": filename,
		}, err)
	}
	// WriteFile perm only applies to new files; enforce on overwrite too.
	if err := os.Chmod(path, 0o600); err != nil {
		s.logger.Warn("cannot restrict file permissions", "path", path, "err", err)
	}

	s.audit.FileOperation(context.Background(), "write", filename, true, "")
	metrics.StorageOps.Inc()
	return path, nil
}

// Read returns the UTF-8 content of a stored file.
func (s *SecureStorage) Read(filename string) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		s.audit.FileOperation(context.Background(), "read", filename, false, err.Error())
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.audit.FileOperation(context.Background(), "read", filename, false, err.Error())
		if os.IsNotExist(err) {
			return "", domain.WrapError(domain.KindStorage, fmt.Sprintf("file not found: %s", filename), map[string]any{
				"filename": filename,
			}, err)
		}
		return "", domain.WrapError(domain.KindStorage, "failed to read file", map[string]any{
			"filename": filename,
		}, err)
	}

	s.audit.FileOperation(context.Background(), "read", filename, true, "")
	metrics.StorageOps.Inc()
	return string(data), nil
}

// Exists reports whether a file exists. Validation and traversal
// failures downgrade to false: existence probes must be safe against
// arbitrary untrusted filenames.
func (s *SecureStorage) Exists(filename string) bool {
	path, err := s.resolve(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Delete removes a file. It returns true if a file was removed and
// false if it was already absent. Validation and traversal failures
// propagate, unlike Exists.
func (s *SecureStorage) Delete(filename string) (bool, error) {
	path, err := s.resolve(filename)
	if err != nil {
		s.audit.FileOperation(context.Background(), "delete", filename, false, err.Error())
		return false, err
	}

	err = os.Remove(path)
	if os.IsNotExist(err) {
		s.audit.FileOperation(context.Background(), "delete", filename, true, "")
		return false, nil
	}
	if err != nil {
		s.audit.FileOperation(context.Background(), "delete", filename, false, err.Error())
		return false, domain.WrapError(domain.KindStorage, "failed to delete file", map[string]any{
			"filename": filename,
		}, err)
	}

	s.audit.FileOperation(context.Background(), "delete", filename, true, "")
	metrics.StorageOps.Inc()
	return true, nil
}

var _ domain.FileStore = (*SecureStorage)(nil)
