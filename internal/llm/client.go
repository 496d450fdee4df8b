package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Options tune a single call. JSON asks the provider for a JSON object
// response where it supports one.
type Options struct {
	Temperature float64
	JSON        bool
}

type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Response, error)
}

// Named is implemented by clients that can report the model they call.
type Named interface {
	Name() string
}

func nameOf(c Client, fallback string) string {
	if n, ok := c.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}
