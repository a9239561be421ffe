package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/doubtsolver/doubtd/internal/answer"
	"github.com/doubtsolver/doubtd/internal/storage"
)

func newTestMCPDeps(t *testing.T, gen *stubGenerator) (MCPDeps, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	return MCPDeps{Store: store, Generator: gen}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_AskQuestion(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubGenerator{result: answer.Result{Answer: "blue"}})
	handler := mcpAskQuestion(deps)

	req := makeCallToolRequest("ask_question", map[string]interface{}{
		"question": "What color is the sky?",
		"user_id":  4,
	})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var q storage.Question
	if err := json.Unmarshal([]byte(toolText(t, result)), &q); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if a, ok := q.Outcome.Answer(); !ok || a != "blue" {
		t.Fatalf("answer = %q, ok = %v", a, ok)
	}
	if q.UserID == nil || *q.UserID != 4 {
		t.Fatalf("user id = %v, want 4", q.UserID)
	}

	if _, err := store.Get(q.ID); err != nil {
		t.Fatalf("question not persisted: %v", err)
	}
}

func TestMCPTool_AskQuestion_MissingArgument(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &stubGenerator{})
	handler := mcpAskQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_question", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing question")
	}
}

func TestMCPTool_AskQuestion_GenerationFailureIsStored(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubGenerator{result: answer.Result{Err: "model offline"}})
	handler := mcpAskQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_question", map[string]interface{}{
		"question": "anyone home?",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The failure lives on the record; the tool call itself succeeds.
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var q storage.Question
	if err := json.Unmarshal([]byte(toolText(t, result)), &q); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if e, ok := q.Outcome.Err(); !ok || e != "model offline" {
		t.Fatalf("error = %q, ok = %v", e, ok)
	}

	stored, err := store.Get(q.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e, ok := stored.Outcome.Err(); !ok || e != "model offline" {
		t.Fatalf("stored error = %q, ok = %v", e, ok)
	}
}

func TestMCPTool_RegenerateAnswer(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubGenerator{result: answer.Result{Answer: "second take"}})
	q, err := store.Create("try again", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.SetOutcome(q.ID, storage.Failed("first try failed"))

	handler := mcpRegenerateAnswer(deps)
	result, err := handler(context.Background(), makeCallToolRequest("regenerate_answer", map[string]interface{}{
		"id": int(q.ID),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var updated storage.Question
	if err := json.Unmarshal([]byte(toolText(t, result)), &updated); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if a, ok := updated.Outcome.Answer(); !ok || a != "second take" {
		t.Fatalf("answer = %q, ok = %v", a, ok)
	}
}

func TestMCPTool_RegenerateAnswer_NotFound(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &stubGenerator{})
	handler := mcpRegenerateAnswer(deps)

	result, err := handler(context.Background(), makeCallToolRequest("regenerate_answer", map[string]interface{}{
		"id": 999,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for unknown id")
	}
}

func TestMCPTool_DeleteQuestion(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubGenerator{})
	q, _ := store.Create("transient", nil)

	handler := mcpDeleteQuestion(deps)
	result, err := handler(context.Background(), makeCallToolRequest("delete_question", map[string]interface{}{
		"id": int(q.ID),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	if _, err := store.Get(q.ID); err != storage.ErrNotFound {
		t.Fatalf("question still present: %v", err)
	}

	// Deleting again reports not found.
	result, err = handler(context.Background(), makeCallToolRequest("delete_question", map[string]interface{}{
		"id": int(q.ID),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for already-deleted id")
	}
}

func TestMCPResource_RecentQuestions(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubGenerator{})
	store.Create("older", nil)
	store.Create("newer", nil)

	handler := mcpResourceRecent(deps)
	contents, err := handler(context.Background(), makeReadResourceRequest("questions://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}

	var summaries []struct {
		ID       int64  `json:"id"`
		Question string `json:"question"`
		State    string `json:"state"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(summaries))
	}
	if summaries[0].Question != "newer" {
		t.Fatalf("expected newest first, got %q", summaries[0].Question)
	}
	if summaries[0].State != "pending" {
		t.Fatalf("state = %q, want pending", summaries[0].State)
	}
}
