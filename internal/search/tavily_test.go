package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"briefbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(t *testing.T, handler http.HandlerFunc) *TavilyClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewTavily("tvly-test", domain.NopAudit{}, testLogger())
	c.client.SetBaseURL(srv.URL)
	c.client.SetRetryCount(0)
	return c
}

type suspiciousRecorder struct {
	domain.NopAudit
	activities []string
}

func (r *suspiciousRecorder) SuspiciousActivity(_ context.Context, activity, _ string) {
	r.activities = append(r.activities, activity)
}

func TestSearchNews(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if body["topic"] != "news" {
			t.Errorf("expected news topic, got %v", body["topic"])
		}
		if body["time_range"] != "w" {
			t.Errorf("weekly searches use time_range w, got %v", body["time_range"])
		}
		if body["days"] != float64(7) {
			t.Errorf("weekly searches cover 7 days, got %v", body["days"])
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"query": "go releases",
			"results": [
				{"title": "Go 1.25 released", "url": "https://example.com/go", "content": "The Go team announced...", "score": 0.93, "published_date": "2026-08-12"},
				{"title": "", "url": "https://example.com/empty", "content": "", "score": 0.1}
			]
		}`)
	})

	audit := &suspiciousRecorder{}
	c.audit = audit

	articles, err := c.SearchNews(context.Background(), "go releases", domain.FrequencyWeekly, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected the empty row to be skipped, got %d articles", len(articles))
	}
	got := articles[0]
	if got.Title != "Go 1.25 released" || got.Score != 0.93 {
		t.Fatalf("unexpected article %+v", got)
	}
	if !got.HasPublishedDate() {
		t.Fatal("published_date should be parsed")
	}
	if got.Source != "tavily" {
		t.Fatalf("source should be tagged, got %q", got.Source)
	}
	if len(audit.activities) != 1 {
		t.Fatalf("skipped rows should be reported, got %v", audit.activities)
	}
}

func TestSearchNews_EmptyQuery(t *testing.T) {
	c := NewTavily("tvly-test", domain.NopAudit{}, testLogger())
	_, err := c.SearchNews(context.Background(), "", domain.FrequencyDaily, 5)
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSearchNews_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := c.SearchNews(context.Background(), "anything", domain.FrequencyDaily, 5)
	if !domain.IsKind(err, domain.KindSearch) {
		t.Fatalf("expected search error, got %v", err)
	}
	if status, _ := domain.Detail(err, "status"); status != 401 {
		t.Fatalf("error should carry the status code, got %v", status)
	}
}

func TestSearchNews_NoResults(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"query": "nothing", "results": []}`)
	})

	articles, err := c.SearchNews(context.Background(), "nothing", domain.FrequencyMonthly, 5)
	if err != nil {
		t.Fatalf("empty result sets are not errors: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected no articles, got %d", len(articles))
	}
}

func TestAvailable(t *testing.T) {
	if !NewTavily("key", domain.NopAudit{}, testLogger()).Available() {
		t.Fatal("client with key should be available")
	}
	if NewTavily("", domain.NopAudit{}, testLogger()).Available() {
		t.Fatal("client without key should not be available")
	}
}
