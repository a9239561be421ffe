package answer

import "context"

// Message is a chat message sent to a completion provider.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Client is a chat completion provider. Implementations return the
// assistant's text verbatim, or an error for credential, transport, or
// upstream failures.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
