package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/voicemind/voicemind/internal/answer"
	"github.com/voicemind/voicemind/internal/audio"
	"github.com/voicemind/voicemind/internal/events"
	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/session"
	"github.com/voicemind/voicemind/internal/storage"
	"github.com/voicemind/voicemind/internal/transcribe"
)

// fakeTranscriber returns canned results or errors per call. The call
// counter is atomic because ingestion runs transcriptions concurrently.
type fakeTranscriber struct {
	fn    func(pcm []byte, sampleRate int, language string) (transcribe.Result, error)
	calls atomic.Int64
}

func (f *fakeTranscriber) Transcribe(_ context.Context, pcm []byte, sampleRate int, language string) (transcribe.Result, error) {
	f.calls.Add(1)
	return f.fn(pcm, sampleRate, language)
}

// fakeAsker answers with a canned function per question.
type fakeAsker struct {
	fn func(question string) (answer.Answer, error)
}

func (f *fakeAsker) Ask(_ context.Context, _ string, _ []string, question string) (answer.Answer, error) {
	return f.fn(question)
}

// eventRecordingStore wraps the real store and captures LogEvent calls.
type eventRecordingStore struct {
	*storage.Store
	events []storage.SystemEvent
}

func (s *eventRecordingStore) LogEvent(e storage.SystemEvent) error {
	s.events = append(s.events, e)
	return s.Store.LogEvent(e)
}

func newTestDeps(t *testing.T) (*storage.Store, *session.Registry, *metrics.Metrics, *events.Publisher) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	m := metrics.New(prometheus.NewRegistry())
	pub := events.NewPublisher(false, nil, "", slog.Default())
	return store, session.NewRegistry(store), m, pub
}

func mustStartMeeting(t *testing.T, reg *session.Registry, id string) {
	t.Helper()
	if _, err := reg.StartSession(id, "", "en"); err != nil {
		t.Fatalf("StartSession(%q) failed: %v", id, err)
	}
}

func pcm(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func okTranscriber(text string) *fakeTranscriber {
	return &fakeTranscriber{fn: func([]byte, int, string) (transcribe.Result, error) {
		return transcribe.Result{Text: text, Language: "en"}, nil
	}}
}

func failingTranscriber() *fakeTranscriber {
	return &fakeTranscriber{fn: func([]byte, int, string) (transcribe.Result, error) {
		return transcribe.Result{}, fmt.Errorf("recognizer unavailable")
	}}
}

func newTestIngestor(t *testing.T, store IngestStore, tr transcribe.Transcriber, m *metrics.Metrics, pub *events.Publisher) *Ingestor {
	t.Helper()
	return NewIngestor(store, tr, audio.NewSpool(""), pub, m, slog.Default(), time.Second)
}

func newTestFinalizer(t *testing.T, store FinalizeStore, reg *session.Registry, asker QuestionAsker, m *metrics.Metrics, pub *events.Publisher) *Finalizer {
	t.Helper()
	return NewFinalizer(store, reg, asker, audio.NewSpool(""), pub, m, slog.Default())
}
