// Package search fetches news articles from the Tavily API.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"briefbot/internal/domain"
	"briefbot/internal/metrics"
)

const (
	defaultBaseURL = "https://api.tavily.com"
	defaultTimeout = 30 * time.Second
)

// tavilyResponse mirrors the wire format of POST /search.
type tavilyResponse struct {
	Query   string         `json:"query"`
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// TavilyClient implements domain.SearchService against the Tavily
// news topic.
type TavilyClient struct {
	client *resty.Client
	apiKey string
	audit  domain.AuditLogger
	logger *slog.Logger
}

func NewTavily(apiKey string, audit domain.AuditLogger, logger *slog.Logger) *TavilyClient {
	if audit == nil {
		audit = domain.NopAudit{}
	}
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && (r.StatusCode() == 429 || r.StatusCode() >= 500)
		})
	return &TavilyClient{client: client, apiKey: apiKey, audit: audit, logger: logger}
}

func (t *TavilyClient) Available() bool { return t.apiKey != "" }

// SearchNews queries the news topic scoped to the frequency window and
// returns the parsed articles. Rows that cannot be turned into an
// article are skipped and reported as suspicious activity rather than
// failing the whole search.
func (t *TavilyClient) SearchNews(ctx context.Context, query string, freq domain.Frequency, maxResults int) ([]domain.NewsArticle, error) {
	if query == "" {
		return nil, domain.NewError(domain.KindValidation, "search query cannot be empty", nil)
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	body := map[string]any{
		"api_key":     t.apiKey,
		"query":       query,
		"topic":       "news",
		"time_range":  freq.TimeRange(),
		"days":        freq.Days(),
		"max_results": maxResults,
	}

	var parsed tavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&parsed).
		Post("/search")
	metrics.SearchRequests.Inc()
	if err != nil {
		return nil, domain.WrapError(domain.KindSearch, "tavily request failed", map[string]any{
			"query": query,
		}, err)
	}
	if resp.IsError() {
		return nil, domain.NewError(domain.KindSearch,
			fmt.Sprintf("tavily returned %d", resp.StatusCode()),
			map[string]any{"query": query, "status": resp.StatusCode()})
	}

	articles := make([]domain.NewsArticle, 0, len(parsed.Results))
	for _, row := range parsed.Results {
		article, err := t.toArticle(row)
		if err != nil {
			t.audit.SuspiciousActivity(ctx, "unparseable search result",
				fmt.Sprintf("query=%s url=%s err=%v", query, row.URL, err))
			t.logger.Warn("skipping search result", "url", row.URL, "err", err)
			continue
		}
		articles = append(articles, article)
	}

	t.logger.Info("news search complete", "query", query, "frequency", string(freq), "articles", len(articles))
	return articles, nil
}

func (t *TavilyClient) toArticle(row tavilyResult) (domain.NewsArticle, error) {
	article, err := domain.NewNewsArticle(row.Title, row.Content, row.URL)
	if err != nil {
		return domain.NewsArticle{}, err
	}
	article.Score = row.Score
	article.Source = "tavily"
	if row.PublishedDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02", "Mon, 02 Jan 2006 15:04:05 MST"} {
			if ts, err := time.Parse(layout, row.PublishedDate); err == nil {
				article.PublishedAt = &ts
				break
			}
		}
	}
	return article, nil
}

var _ domain.SearchService = (*TavilyClient)(nil)
