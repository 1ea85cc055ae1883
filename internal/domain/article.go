package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewsArticle is a single search result from the news provider.
type NewsArticle struct {
	ID          string
	Title       string
	Content     string
	URL         string
	PublishedAt *time.Time
	Source      string
	Score       float64
}

// NewNewsArticle constructs an article; it must carry at least a title
// or some content.
func NewNewsArticle(title, content, url string) (NewsArticle, error) {
	if title == "" && content == "" {
		return NewsArticle{}, NewError(KindValidation, "article must have either title or content", nil)
	}
	return NewsArticle{
		ID:      uuid.NewString(),
		Title:   title,
		Content: content,
		URL:     url,
	}, nil
}

func (a NewsArticle) HasURL() bool           { return a.URL != "" }
func (a NewsArticle) HasPublishedDate() bool { return a.PublishedAt != nil }

// Summary returns the content truncated to maxLen characters.
func (a NewsArticle) Summary(maxLen int) string {
	if maxLen <= 0 {
		return a.Content
	}
	runes := []rune(a.Content)
	if len(runes) <= maxLen {
		return a.Content
	}
	return string(runes[:maxLen]) + "..."
}
