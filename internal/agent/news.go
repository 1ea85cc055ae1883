package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"briefbot/internal/domain"
	"briefbot/internal/validation"
)

// articleExcerptLen bounds how much of each article feeds the prompt.
const articleExcerptLen = 500

const summarizerPrompt = `You are a news summarizer. Given a list of news articles, produce a concise briefing in markdown: a short overall paragraph followed by one bullet per story. Mention sources by name where available. Do not invent facts that are not in the articles.`

// NewsResult is the outcome of one news briefing run.
type NewsResult struct {
	Summary      string
	FilePath     string
	Frequency    domain.Frequency
	ArticleCount int
}

// NewsService searches for news, summarizes it with the model and
// persists the briefing as <frequency>_summary.md.
type NewsService struct {
	validator  *validation.Validator
	search     domain.SearchService
	provider   domain.Provider
	files      domain.FileStore
	audit      domain.AuditLogger
	logger     *slog.Logger
	modelCfg   domain.ModelConfig
	maxResults int
}

func NewNewsService(
	validator *validation.Validator,
	search domain.SearchService,
	provider domain.Provider,
	files domain.FileStore,
	audit domain.AuditLogger,
	logger *slog.Logger,
	modelCfg domain.ModelConfig,
	maxResults int,
) *NewsService {
	if audit == nil {
		audit = domain.NopAudit{}
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &NewsService{
		validator:  validator,
		search:     search,
		provider:   provider,
		files:      files,
		audit:      audit,
		logger:     logger,
		modelCfg:   modelCfg,
		maxResults: maxResults,
	}
}

// Execute runs one briefing: validate inputs, search, summarize, save.
func (s *NewsService) Execute(ctx context.Context, query, rawFrequency string) (*NewsResult, error) {
	freq, err := s.validator.ValidateFrequency(rawFrequency)
	if err != nil {
		reportRejection(ctx, s.audit, rawFrequency, err)
		return nil, err
	}
	cleanQuery, err := s.validator.ValidateMessage(query)
	if err != nil {
		reportRejection(ctx, s.audit, query, err)
		return nil, err
	}

	articles, err := s.search.SearchNews(ctx, cleanQuery, freq, s.maxResults)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, domain.NewError(domain.KindSearch, "no news articles found", map[string]any{
			"query":     cleanQuery,
			"frequency": string(freq),
		})
	}

	summary, err := s.summarize(ctx, cleanQuery, freq, articles)
	if err != nil {
		return nil, err
	}

	filename := freq.SummaryFilename()
	document := s.renderDocument(cleanQuery, freq, summary, articles)
	path, err := s.files.Save(filename, document)
	if err != nil {
		return nil, err
	}

	s.logger.Info("news briefing saved",
		"frequency", string(freq), "articles", len(articles), "path", path)
	return &NewsResult{
		Summary:      summary,
		FilePath:     path,
		Frequency:    freq,
		ArticleCount: len(articles),
	}, nil
}

// LastSummary returns the persisted briefing for a frequency, if any.
func (s *NewsService) LastSummary(rawFrequency string) (string, error) {
	freq, err := s.validator.ValidateFrequency(rawFrequency)
	if err != nil {
		return "", err
	}
	return s.files.Read(freq.SummaryFilename())
}

func (s *NewsService) summarize(ctx context.Context, query string, freq domain.Frequency, articles []domain.NewsArticle) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize the following %s news about %q:\n\n", freq, query)
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, a.Title)
		if a.HasURL() {
			fmt.Fprintf(&sb, "   Source: %s\n", a.URL)
		}
		if excerpt := a.Summary(articleExcerptLen); excerpt != "" {
			fmt.Fprintf(&sb, "   %s\n", excerpt)
		}
		sb.WriteString("\n")
	}

	prompt := sb.String()
	if runes := []rune(prompt); len(runes) > domain.MaxMessageLength {
		prompt = string(runes[:domain.MaxMessageLength])
	}

	system, err := domain.NewSystemMessage(summarizerPrompt, nil)
	if err != nil {
		return "", err
	}
	user, err := domain.NewUserMessage(prompt, nil)
	if err != nil {
		return "", err
	}

	reply, err := s.provider.Generate(ctx, []domain.Message{system, user}, s.modelCfg)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

func (s *NewsService) renderDocument(query string, freq domain.Frequency, summary string, articles []domain.NewsArticle) string {
	var sb strings.Builder
	title := strings.ToUpper(string(freq)[:1]) + string(freq)[1:]
	fmt.Fprintf(&sb, "# %s News Summary\n\n", title)
	fmt.Fprintf(&sb, "**Query:** %s\n", query)
	fmt.Fprintf(&sb, "**Generated:** %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Articles:** %d\n\n", len(articles))
	sb.WriteString(summary)
	sb.WriteString("\n\n## Sources\n\n")
	for _, a := range articles {
		if a.HasURL() {
			fmt.Fprintf(&sb, "- [%s](%s)\n", a.Title, a.URL)
		} else {
			fmt.Fprintf(&sb, "- %s\n", a.Title)
		}
	}
	return sb.String()
}
