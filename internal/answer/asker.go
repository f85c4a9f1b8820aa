package answer

import (
	"context"
	"fmt"
	"time"
)

const defaultAskTimeout = 60 * time.Second

// Answer is the outcome of one question, populated even when the backend
// failed: failures are rendered as answer text so callers can persist and
// surface them instead of aborting the pipeline.
type Answer struct {
	Text    string
	Model   string
	Elapsed time.Duration
}

// Asker is the single "ask the model a question about this transcript"
// primitive shared by summaries, agendas, action items, and ad-hoc Q&A.
type Asker struct {
	eng     Engine
	timeout time.Duration
}

// NewAsker wraps an engine with a per-question timeout.
// If timeout is <= 0, a 60s default applies.
func NewAsker(eng Engine, timeout time.Duration) *Asker {
	if timeout <= 0 {
		timeout = defaultAskTimeout
	}
	return &Asker{eng: eng, timeout: timeout}
}

// Ask answers one question about a transcript. On backend failure the
// returned Answer carries error-annotated text and the elapsed time, and the
// error is also returned so callers can count it.
func (a *Asker) Ask(ctx context.Context, transcript string, documents []string, question string) (Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	text, err := a.eng.Chat(ctx, BuildMessages(transcript, documents, question))
	elapsed := time.Since(start)

	if err != nil {
		return Answer{
			Text:    fmt.Sprintf("Error generating answer: %v", err),
			Model:   a.eng.Model(),
			Elapsed: elapsed,
		}, err
	}

	return Answer{Text: text, Model: a.eng.Model(), Elapsed: elapsed}, nil
}
