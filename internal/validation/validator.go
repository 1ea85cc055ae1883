// Package validation gates all user-supplied text before it reaches a
// model provider or the storage layer.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"briefbot/internal/domain"
)

// Signature is a named prompt-injection pattern.
type Signature struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type compiledSignature struct {
	name    string
	pattern string
	re      *regexp.Regexp
}

// builtinSignatures are the fixed injection patterns every validator
// carries: instruction-override phrasing, fake system-role preambles,
// script tags, javascript: URIs, and DOM event handlers.
var builtinSignatures = []Signature{
	{Name: "instruction_override", Pattern: `(ignore|forget|disregard|override)\s+(previous|above|prior|all)\s+(instructions|prompts|rules|commands)`},
	{Name: "system_role_preamble", Pattern: `system\s*:\s*you\s+are`},
	{Name: "script_tag", Pattern: `<\s*script\s*>`},
	{Name: "javascript_uri", Pattern: `javascript\s*:`},
	{Name: "event_handler", Pattern: `on(load|error|click)\s*=`},
}

var (
	filenamePattern      = regexp.MustCompile(`^[a-z0-9_-]+\.md$`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
)

// Validator checks user messages for length bounds and injection
// signatures. The zero dependency set makes it safe for any number of
// concurrent callers.
type Validator struct {
	signatures []compiledSignature
}

// New builds a validator from the built-in signatures plus any extra
// ones (e.g. loaded from a policy pack). Patterns are matched
// case-insensitively against the whole message.
func New(extra ...Signature) (*Validator, error) {
	all := make([]Signature, 0, len(builtinSignatures)+len(extra))
	all = append(all, builtinSignatures...)
	all = append(all, extra...)

	compiled := make([]compiledSignature, 0, len(all))
	for _, sig := range all {
		re, err := regexp.Compile(`(?i)` + sig.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid injection pattern %q: %w", sig.Name, err)
		}
		compiled = append(compiled, compiledSignature{name: sig.Name, pattern: sig.Pattern, re: re})
	}
	return &Validator{signatures: compiled}, nil
}

// Default is the validator carrying only the built-in signatures.
var Default = mustNew()

func mustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateMessage gates a user message. On success it returns the
// message with whitespace runs collapsed to single spaces and no
// leading/trailing whitespace. Injection detection deliberately runs
// before normalization so patterns see the content as typed.
func (v *Validator) ValidateMessage(message string) (string, error) {
	if message == "" {
		return "", domain.NewError(domain.KindValidation, "message cannot be empty", nil)
	}
	// Length bounds count characters, not bytes.
	length := utf8.RuneCountInString(message)
	if length > domain.MaxMessageLength {
		return "", domain.NewError(domain.KindMessageTooLong, "message exceeds maximum length", map[string]any{
			"length":     length,
			"max_length": domain.MaxMessageLength,
		})
	}
	if length < domain.MinMessageLength {
		return "", domain.NewError(domain.KindValidation, "message is too short", nil)
	}

	lowered := strings.ToLower(message)
	for _, sig := range v.signatures {
		if sig.re.MatchString(lowered) {
			return "", domain.NewError(domain.KindPromptInjection, "potential prompt injection detected", map[string]any{
				"signature": sig.name,
				"pattern":   sig.pattern,
			})
		}
	}

	sanitized := whitespaceRunPattern.ReplaceAllString(message, " ")
	return strings.TrimSpace(sanitized), nil
}

// ValidateFrequency normalizes and checks a news frequency value.
func (v *Validator) ValidateFrequency(frequency string) (domain.Frequency, error) {
	if frequency == "" {
		return "", domain.NewError(domain.KindInvalidFrequency, "frequency cannot be empty", map[string]any{
			"valid_options": frequencyOptions(),
		})
	}

	normalized := strings.ToLower(strings.TrimSpace(frequency))
	for _, f := range domain.Frequencies() {
		if normalized == string(f) {
			return f, nil
		}
	}

	return "", domain.NewError(domain.KindInvalidFrequency,
		fmt.Sprintf("invalid frequency: %s. Must be one of: %s", frequency, strings.Join(frequencyOptions(), ", ")),
		map[string]any{
			"provided":      frequency,
			"valid_options": frequencyOptions(),
		})
}

// ValidateFilename checks a filename against the storage allow-list:
// lowercase alphanumerics, underscores, or hyphens followed by a .md
// extension, with no path separators. It is a pass-through check, not
// a transformation.
func (v *Validator) ValidateFilename(filename string) (string, error) {
	if filename == "" {
		return "", domain.NewError(domain.KindValidation, "filename cannot be empty", nil)
	}
	if !filenamePattern.MatchString(filename) {
		return "", domain.NewError(domain.KindValidation,
			fmt.Sprintf("invalid filename: %s. Must be alphanumeric with .md extension", filename),
			map[string]any{"filename": filename})
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return "", domain.NewError(domain.KindValidation, "filename cannot contain path separators", map[string]any{
			"filename": filename,
		})
	}
	return filename, nil
}

func frequencyOptions() []string {
	freqs := domain.Frequencies()
	opts := make([]string, len(freqs))
	for i, f := range freqs {
		opts[i] = string(f)
	}
	return opts
}

// Package-level helpers delegating to the default validator.

func ValidateMessage(message string) (string, error) { return Default.ValidateMessage(message) }

func ValidateFrequency(frequency string) (domain.Frequency, error) {
	return Default.ValidateFrequency(frequency)
}

func ValidateFilename(filename string) (string, error) { return Default.ValidateFilename(filename) }
