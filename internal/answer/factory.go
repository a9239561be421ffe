package answer

import "fmt"

// Options selects and configures a completion provider.
type Options struct {
	Provider string // "openai" or "ollama"

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OllamaBaseURL string
	OllamaModel   string
}

// NewClient builds the Client named by opts.Provider.
func NewClient(opts Options) (Client, error) {
	switch opts.Provider {
	case "", "openai":
		return NewOpenAI(opts.OpenAIAPIKey, opts.OpenAIBaseURL, opts.OpenAIModel), nil
	case "ollama":
		return NewOllama(opts.OllamaBaseURL, opts.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", opts.Provider)
	}
}
