// Package answer is the language-model gateway: it turns "ask this question
// about this transcript" into a chat call against a configured backend and
// carries the model id and latency back with every answer. Summary, agenda,
// action-item extraction, and ad-hoc Q&A all go through the same primitive.
package answer

import "context"

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine abstracts an answering backend (OpenAI-compatible HTTP API or a
// local Ollama instance).
type Engine interface {
	// Chat sends messages and returns the assistant's response text.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Model returns the backend model identifier recorded with answers.
	Model() string
}
