package answer

import (
	"context"

	"github.com/voicemind/voicemind/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface so
// answering can run against a local model instead of a cloud API.
type OllamaEngine struct {
	client      *ollama.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewOllamaEngine(baseURL, model string, temperature float64, maxTokens int) *OllamaEngine {
	return &OllamaEngine{
		client:      ollama.New(baseURL),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (e *OllamaEngine) Model() string {
	return e.model
}

func (e *OllamaEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return e.client.Chat(ctx, e.model, msgs, &ollama.Options{
		Temperature: e.temperature,
		NumPredict:  e.maxTokens,
	})
}

// IsRunning reports whether the backing Ollama server is reachable.
func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}
