package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/doubtsolver/doubtd/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     storage.Store
	Generator Generator
}

// NewMCPServer creates an MCP server exposing the question lifecycle as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"doubtd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("doubtd — ask questions and get model-generated answers, kept in a local history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_question",
			mcp.WithDescription("Submit a question, generate an answer for it, and store the result."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("user_id", mcp.Description("Optional owner id to file the question under")),
		),
		mcpAskQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("regenerate_answer",
			mcp.WithDescription("Run a fresh generation attempt for an existing question, replacing its previous answer or error."),
			mcp.WithNumber("id", mcp.Description("Question id"), mcp.Required()),
		),
		mcpRegenerateAnswer(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_question",
			mcp.WithDescription("Delete a stored question by id."),
			mcp.WithNumber("id", mcp.Description("Question id"), mcp.Required()),
		),
		mcpDeleteQuestion(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"questions://recent",
			"Recent Questions",
			mcp.WithResourceDescription("Last 10 stored questions with their outcomes"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAskQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		var userID *int64
		if v := req.GetInt("user_id", 0); v != 0 {
			uid := int64(v)
			userID = &uid
		}

		q, err := deps.Store.Create(question, userID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save question: %v", err)), nil
		}

		return mcpResolve(ctx, deps, q)
	}
}

func mcpRegenerateAnswer(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		q, err := deps.Store.Get(int64(id))
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(fmt.Sprintf("question %d not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get question: %v", err)), nil
		}

		return mcpResolve(ctx, deps, q)
	}
}

// mcpResolve runs one generation attempt, persists the outcome, and returns
// the updated record as JSON. A failed generation is a stored result, not a
// tool error.
func mcpResolve(ctx context.Context, deps MCPDeps, q storage.Question) (*mcp.CallToolResult, error) {
	res := deps.Generator.Generate(ctx, q.Text)

	var outcome storage.Outcome
	if res.Err != "" {
		outcome = storage.Failed(res.Err)
	} else {
		outcome = storage.Answered(res.Answer)
	}

	updated, err := deps.Store.SetOutcome(q.ID, outcome)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to update question: %v", err)), nil
	}

	b, err := json.Marshal(updated)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal question: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpDeleteQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		existed, err := deps.Store.Delete(int64(id))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to delete question: %v", err)), nil
		}
		if !existed {
			return mcpError(fmt.Sprintf("question %d not found", id)), nil
		}
		return mcpText(fmt.Sprintf("Deleted question %d", id)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		questions, err := deps.Store.ListRecent(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}

		type questionSummary struct {
			ID        int64  `json:"id"`
			Question  string `json:"question"`
			State     string `json:"state"`
			CreatedAt string `json:"created_at"`
		}

		summaries := make([]questionSummary, len(questions))
		for i, q := range questions {
			text := q.Text
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = questionSummary{
				ID:        q.ID,
				Question:  text,
				State:     string(q.Outcome.State()),
				CreatedAt: q.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal questions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
