package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// policyFile is the schema of a single policy-pack YAML file.
type policyFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// LoadSignatures loads extra injection signatures from YAML files in a
// directory. Files must have a .yaml or .yml extension. Unreadable or
// malformed files are logged and skipped; a missing directory is not
// an error.
func LoadSignatures(dir string, logger *slog.Logger) ([]Signature, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("policy directory does not exist, skipping", "dir", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read policy dir: %w", err)
	}

	var sigs []Signature
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read policy file", "path", path, "err", err)
			continue
		}

		var pf policyFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			logger.Warn("cannot parse policy file", "path", path, "err", err)
			continue
		}

		for i, sig := range pf.Signatures {
			if sig.Pattern == "" {
				logger.Warn("policy signature missing pattern", "path", path, "index", i)
				continue
			}
			if sig.Name == "" {
				sig.Name = fmt.Sprintf("%s_%d", strings.TrimSuffix(name, filepath.Ext(name)), i)
			}
			sigs = append(sigs, sig)
		}
		logger.Info("loaded policy pack", "path", path, "signatures", len(pf.Signatures))
	}

	return sigs, nil
}
