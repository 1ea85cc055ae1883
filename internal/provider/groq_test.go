package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"briefbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testProvider(baseURL string) *GroqProvider {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	return &GroqProvider{
		client: openai.NewClientWithConfig(cfg),
		audit:  domain.NopAudit{},
		logger: testLogger(),
	}
}

func completionJSON(content string) string {
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   domain.DefaultGroqModel,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func fastConfig() domain.ModelConfig {
	cfg := domain.GroqModelConfig("")
	cfg.MaxRetries = 0
	cfg.Timeout = 5
	return cfg
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("hi there"))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	msg, err := domain.NewUserMessage("hello", nil)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := p.Generate(context.Background(), []domain.Message{msg}, fastConfig())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Content != "hi there" {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if !reply.IsAssistant() {
		t.Fatal("reply must carry the assistant role")
	}
	if reply.Metadata["model"] != domain.DefaultGroqModel {
		t.Fatalf("reply should record the model, got %v", reply.Metadata["model"])
	}
}

func TestGenerate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionJSON("second time lucky"))
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	msg, _ := domain.NewUserMessage("hello", nil)
	cfg := fastConfig()
	cfg.MaxRetries = 2
	cfg.Timeout = 30

	reply, err := p.Generate(context.Background(), []domain.Message{msg}, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.Content != "second time lucky" {
		t.Fatalf("unexpected reply %q", reply.Content)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls.Load())
	}
}

func TestGenerate_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad model"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	p := testProvider(srv.URL)
	msg, _ := domain.NewUserMessage("hello", nil)
	cfg := fastConfig()
	cfg.MaxRetries = 3

	_, err := p.Generate(context.Background(), []domain.Message{msg}, cfg)
	if !domain.IsKind(err, domain.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
	if model, _ := domain.Detail(err, "model"); model != domain.DefaultGroqModel {
		t.Fatalf("provider errors should carry the model, got %v", model)
	}
}

func TestGenerate_InvalidConfigRejected(t *testing.T) {
	p := testProvider("http://127.0.0.1:0")
	msg, _ := domain.NewUserMessage("hello", nil)
	cfg := fastConfig()
	cfg.Temperature = 9

	if _, err := p.Generate(context.Background(), []domain.Message{msg}, cfg); !domain.IsKind(err, domain.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory(nil, domain.NopAudit{}, testLogger())
	_, err := f.Create(context.Background(), "anthropic")
	if !domain.IsKind(err, domain.KindProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
