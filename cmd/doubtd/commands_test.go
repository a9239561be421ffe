package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/doubtsolver/doubtd/internal/config"
	"github.com/doubtsolver/doubtd/internal/history"
	"github.com/doubtsolver/doubtd/internal/storage"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"message":"question not found"}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestAskRequestShape(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /api/questions": `{"id":1,"question":"why?","answer":"because","error":null,"userId":7,"createdAt":"2025-01-01T00:00:00Z"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/api/questions", map[string]any{"question": "why?", "userId": 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := decodeRecord(resp)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if a, ok := q.Outcome.Answer(); !ok || a != "because" {
		t.Errorf("answer = %q, ok = %v", a, ok)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" || r.Path != "/api/questions" {
		t.Errorf("request = %s %s", r.Method, r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "why?" {
		t.Errorf("body.question = %v", body["question"])
	}
	if body["userId"] != float64(7) {
		t.Errorf("body.userId = %v", body["userId"])
	}
}

func TestDecodeRecord_FailedGeneration(t *testing.T) {
	// A 500 carrying a stored record is a resolved request.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(500)
		w.Write([]byte(`{"id":3,"question":"doomed","answer":null,"error":"model offline","userId":null,"createdAt":"2025-01-01T00:00:00Z"}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}
	resp, err := client.post(ctx, "/api/questions", map[string]any{"question": "doomed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, err := decodeRecord(resp)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if e, ok := q.Outcome.Err(); !ok || e != "model offline" {
		t.Errorf("error = %q, ok = %v", e, ok)
	}
}

func TestDecodeRecord_PlainError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"message":"question not found"}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	resp, err := client.get(ctx, "/api/questions/99")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	if _, err := decodeRecord(resp); err == nil {
		t.Fatal("expected error for 404 body without a record")
	} else if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to contain '404'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"message":"invalid or missing bearer token"}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad-token", httpClient: ts.Client()}
	resp, err := client.get(ctx, "/api/questions/1")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestListUserRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /api/users/5/questions": `[{"id":2,"question":"later","answer":"b","error":null,"userId":5,"createdAt":"2025-01-02T00:00:00Z"},{"id":1,"question":"earlier","answer":"a","error":null,"userId":5,"createdAt":"2025-01-01T00:00:00Z"}]`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/api/users/5/questions")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var questions []storage.Question
	if err := decodeJSON(resp, &questions); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Text != "later" {
		t.Errorf("first question = %q, want newest first", questions[0].Text)
	}
}

func TestDeleteRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /api/questions/4": `{"message":"Question deleted successfully"}`,
	})

	client := ts.client()
	resp, err := client.delete(ctx, "/api/questions/4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["message"] != "Question deleted successfully" {
		t.Errorf("message = %q", result["message"])
	}
}

func TestAskCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ask"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing question")
	}
	if !strings.Contains(err.Error(), "arg") {
		t.Errorf("error = %q, want it to mention args", err.Error())
	}
}

func TestEntryFromQuestion(t *testing.T) {
	q := storage.Question{ID: 9, Text: "what now?"}

	q.Outcome = storage.Answered("this")
	e := entryFromQuestion(q)
	if e.Answer != "this" || e.Error != "" {
		t.Errorf("answered entry = %+v", e)
	}

	q.Outcome = storage.Failed("nope")
	e = entryFromQuestion(q)
	if e.Error != "nope" || e.Answer != "" {
		t.Errorf("failed entry = %+v", e)
	}

	q.Outcome = storage.Pending()
	e = entryFromQuestion(q)
	if e.Answer != "" || e.Error != "" {
		t.Errorf("pending entry = %+v", e)
	}
}

func TestHistoryMergeAfterAsk(t *testing.T) {
	cache := history.NewCache(history.NewFileKV(t.TempDir()))

	cache.Add(history.Entry{ID: 1, Question: "old", Answer: "a", CreatedAt: "2025-01-01T00:00:00Z"})
	cache.Add(history.Entry{ID: 2, Question: "new", Error: "boom", CreatedAt: "2025-01-02T00:00:00Z"})

	// Regenerating id 2 replaces it in place.
	cache.Add(history.Entry{ID: 2, Question: "new", Answer: "fixed", CreatedAt: "2025-01-02T00:00:00Z"})

	entries := cache.Load()
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].ID != 2 || entries[0].Answer != "fixed" || entries[0].Error != "" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Answer.OpenAIModel = "gpt-4o-mini"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}
