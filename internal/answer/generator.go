package answer

import (
	"context"
	"log/slog"
	"time"
)

const systemPrompt = "You are a helpful AI assistant that provides clear, accurate, " +
	"and thorough answers to questions. Your responses should be well-structured and " +
	"formatted using Markdown. Include code examples when relevant to programming " +
	"questions. Be concise but comprehensive, and use proper headings, lists, and " +
	"code blocks where appropriate."

const fallbackAnswer = "Sorry, I couldn't generate an answer."

// Result is the outcome of one generation attempt. Exactly one of Answer or
// Err is non-empty.
type Result struct {
	Answer string
	Err    string
}

// Generator produces an answer for a question. Every failure is captured in
// the Result; Generate never returns an error.
type Generator struct {
	client  Client
	timeout time.Duration
}

// NewGenerator wraps client. timeout bounds each generation call; zero means
// no bound beyond the transport's own.
func NewGenerator(client Client, timeout time.Duration) *Generator {
	return &Generator{client: client, timeout: timeout}
}

func (g *Generator) Generate(ctx context.Context, question string) Result {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	content, err := g.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: question},
	})
	if err != nil {
		slog.Error("answer generation failed", "error", err)
		return Result{Err: err.Error()}
	}
	if content == "" {
		return Result{Answer: fallbackAnswer}
	}
	return Result{Answer: content}
}
