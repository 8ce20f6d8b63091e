package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groundedchat/internal/prompt"
)

func TestEmbedderReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	e := NewEmbedder(NewOpenAICompatibleClient(time.Second), EmbeddingConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Fatalf("unexpected vector %v", vec)
	}
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2]},{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	e := NewEmbedder(NewOpenAICompatibleClient(time.Second), EmbeddingConfig{BaseURL: srv.URL})
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed batch failed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Fatalf("expected index ordering, got %v", vecs)
	}
}

func TestEmbedRejectsEmptyInput(t *testing.T) {
	e := NewEmbedder(NewOpenAICompatibleClient(time.Second), EmbeddingConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := e.Embed(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestTemplateGeneratorSendsRenderedPrompt(t *testing.T) {
	var captured struct {
		Model    string        `json:"model"`
		Messages []ChatMessage `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"two years"}}]}`))
	}))
	defer srv.Close()

	g := NewTemplateGenerator(
		NewOpenAICompatibleClient(time.Second),
		ChatConfig{BaseURL: srv.URL, Model: "chat-model"},
		prompt.NewRegistry(),
	)
	answer, err := g.Generate(context.Background(), "grounded.v1", map[string]any{
		"question":   "How long is the warranty?",
		"context":    "The warranty lasts two years.",
		"confidence": float64(80),
		"risk_level": "low",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if answer != "two years" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if captured.Model != "chat-model" || len(captured.Messages) != 2 {
		t.Fatalf("unexpected request %+v", captured)
	}
	if !strings.Contains(captured.Messages[1].Content, "The warranty lasts two years.") {
		t.Fatalf("expected context in user message, got %q", captured.Messages[1].Content)
	}
}

func TestTemplateGeneratorSurfacesStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	g := NewTemplateGenerator(NewOpenAICompatibleClient(time.Second), ChatConfig{BaseURL: srv.URL}, prompt.NewRegistry())
	_, err := g.Generate(context.Background(), "generic.v1", map[string]any{"question": "hi"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestStreamCompleteCollectsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	var parts []string
	full, err := NewOpenAICompatibleClient(time.Second).StreamComplete(context.Background(),
		ChatConfig{BaseURL: srv.URL}, []ChatMessage{{Role: "user", Content: "hi"}},
		func(chunk string) error {
			parts = append(parts, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if full != "Hello" || len(parts) != 2 {
		t.Fatalf("unexpected stream result %q %v", full, parts)
	}
}

func TestTemplateGeneratorStreamMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != true {
			t.Errorf("expected stream request, got %v", body["stream"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"streamed\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	g := NewTemplateGenerator(NewOpenAICompatibleClient(time.Second), ChatConfig{BaseURL: srv.URL, Stream: true}, prompt.NewRegistry())
	got, err := g.Generate(context.Background(), "generic.v1", map[string]any{"question": "hi"})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if got != "streamed" {
		t.Fatalf("unexpected answer %q", got)
	}
}
