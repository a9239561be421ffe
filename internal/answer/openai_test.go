package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockCompletions returns an httptest.Server mimicking the chat completions
// endpoint of an OpenAI-compatible API.
func mockCompletions(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIChat(t *testing.T) {
	srv := mockCompletions(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"**4**"}}]}`))
	})

	c := NewOpenAI("test-key", srv.URL, "gpt-4o")
	got, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "What is 2+2?"},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "**4**" {
		t.Errorf("content = %q", got)
	}
}

func TestOpenAIChatUpstreamError(t *testing.T) {
	srv := mockCompletions(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	})

	c := NewOpenAI("test-key", srv.URL, "gpt-4o")
	if _, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error from upstream 429")
	}
}

func TestOpenAIChatMissingKey(t *testing.T) {
	c := NewOpenAI("", "", "gpt-4o")
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != ErrMissingAPIKey {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestOllamaChat(t *testing.T) {
	srv := mockCompletions(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Model != "llama3" {
			t.Errorf("model = %q", req.Model)
		}

		json.NewEncoder(w).Encode(chatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "local answer"},
		})
	})

	c := NewOllama(srv.URL, "llama3")
	got, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != "local answer" {
		t.Errorf("content = %q", got)
	}
}

func TestNewClientProviderSelection(t *testing.T) {
	c, err := NewClient(Options{Provider: "openai", OpenAIModel: "gpt-4o"})
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := c.(*OpenAIClient); !ok {
		t.Errorf("provider openai built %T", c)
	}

	c, err = NewClient(Options{Provider: "ollama", OllamaBaseURL: "http://localhost:11434", OllamaModel: "llama3"})
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, ok := c.(*OllamaClient); !ok {
		t.Errorf("provider ollama built %T", c)
	}

	if _, err := NewClient(Options{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
