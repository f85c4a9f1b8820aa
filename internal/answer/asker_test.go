package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeEngine records the messages it receives and returns a canned reply.
type fakeEngine struct {
	reply    string
	err      error
	messages []Message
}

func (f *fakeEngine) Chat(ctx context.Context, messages []Message) (string, error) {
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeEngine) Model() string { return "fake-model" }

func TestAskSuccess(t *testing.T) {
	eng := &fakeEngine{reply: "Dana owns the rollout."}
	asker := NewAsker(eng, 5*time.Second)

	got, err := asker.Ask(context.Background(), "Dana: I'll own the rollout.", nil, "Who owns the rollout?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if got.Text != "Dana owns the rollout." {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Model != "fake-model" {
		t.Errorf("Model = %q, want %q", got.Model, "fake-model")
	}
	if got.Elapsed < 0 {
		t.Errorf("Elapsed = %v, want non-negative", got.Elapsed)
	}

	if len(eng.messages) != 2 {
		t.Fatalf("messages = %d, want system + user", len(eng.messages))
	}
	if eng.messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", eng.messages[0].Role)
	}
	user := eng.messages[1].Content
	if !strings.Contains(user, "Dana: I'll own the rollout.") {
		t.Errorf("user prompt missing transcript: %q", user)
	}
	if !strings.Contains(user, "Who owns the rollout?") {
		t.Errorf("user prompt missing question: %q", user)
	}
}

func TestAskFailureAnnotatesAnswer(t *testing.T) {
	eng := &fakeEngine{err: errors.New("rate limited")}
	asker := NewAsker(eng, 5*time.Second)

	got, err := asker.Ask(context.Background(), "transcript", nil, "question")
	if err == nil {
		t.Fatal("expected error from failing engine")
	}
	if !strings.Contains(got.Text, "Error generating answer") || !strings.Contains(got.Text, "rate limited") {
		t.Errorf("Text = %q, want error-annotated answer", got.Text)
	}
	if got.Model != "fake-model" {
		t.Errorf("Model = %q, want recorded even on failure", got.Model)
	}
}

func TestBuildMessagesIncludesDocuments(t *testing.T) {
	msgs := BuildMessages("the transcript", []string{"Q3 goals doc", "budget sheet"}, "what was decided?")

	user := msgs[1].Content
	if !strings.Contains(user, "Q3 goals doc") || !strings.Contains(user, "budget sheet") {
		t.Errorf("user prompt missing briefing documents: %q", user)
	}
	if !strings.Contains(user, "Document 2") {
		t.Errorf("documents not numbered: %q", user)
	}
}

func TestBuildMessagesNoDocuments(t *testing.T) {
	msgs := BuildMessages("the transcript", nil, "q")
	if strings.Contains(msgs[1].Content, "Briefing documents") {
		t.Errorf("document section present without documents: %q", msgs[1].Content)
	}
}
