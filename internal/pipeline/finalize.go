package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voicemind/voicemind/internal/answer"
	"github.com/voicemind/voicemind/internal/audio"
	"github.com/voicemind/voicemind/internal/events"
	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/storage"
)

// FinalizeStore abstracts the persistence the finalizer reads and writes.
type FinalizeStore interface {
	ListChunks(meetingID string) ([]storage.AudioChunk, error)
	ListDocuments(meetingID string) ([]storage.MeetingDocument, error)
	SaveQAInteraction(q storage.QAInteraction) error
	LogEvent(e storage.SystemEvent) error
}

// SessionControl is the slice of the session registry the finalizer needs.
type SessionControl interface {
	GetSession(meetingID string) (storage.Meeting, error)
	CompleteSession(meetingID, transcript, summary, agenda string) error
}

// QuestionAsker answers one question about a transcript. Failures surface as
// error-annotated answer text alongside the error.
type QuestionAsker interface {
	Ask(ctx context.Context, transcript string, documents []string, question string) (answer.Answer, error)
}

// FinalizeResult is what EndSession hands back to the caller.
type FinalizeResult struct {
	Transcript       string
	TranscriptLength int
	ChunkCount       int
	Summary          string
	Agenda           string
}

// QAResult is one answered question.
type QAResult struct {
	Answer       string
	Model        string
	ResponseTime time.Duration
}

// Finalizer ends meetings and answers questions about them. Summary, agenda,
// and Q&A all go through the same QuestionAsker so error handling and timing
// are identical across the three.
type Finalizer struct {
	store     FinalizeStore
	sessions  SessionControl
	asker     QuestionAsker
	spool     *audio.Spool
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewFinalizer(store FinalizeStore, sessions SessionControl, asker QuestionAsker, spool *audio.Spool, pub *events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		store:     store,
		sessions:  sessions,
		asker:     asker,
		spool:     spool,
		publisher: pub,
		metrics:   m,
		logger:    logger,
	}
}

// EndSession stitches the full transcript from stored segments, generates the
// summary and agenda, and commits everything atomically. A meeting with zero
// chunks fails with ErrNoChunks and keeps its status. Model failures never
// abort finalization: the failed text slot carries an error annotation.
func (f *Finalizer) EndSession(ctx context.Context, meetingID string) (FinalizeResult, error) {
	start := time.Now()

	chunks, err := f.store.ListChunks(meetingID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("listing chunks of meeting %s: %w", meetingID, err)
	}
	if len(chunks) == 0 {
		return FinalizeResult{}, fmt.Errorf("meeting %s: %w", meetingID, ErrNoChunks)
	}

	transcript := stitchTranscript(chunks)
	documents := f.documentTexts(meetingID)

	var summary, agenda string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary = f.askAbsorbing(gctx, transcript, documents, answer.SummaryQuestion)
		return nil
	})
	g.Go(func() error {
		agenda = f.askAbsorbing(gctx, transcript, documents, answer.AgendaQuestion)
		return nil
	})
	g.Wait()

	if err := f.sessions.CompleteSession(meetingID, transcript, summary, agenda); err != nil {
		return FinalizeResult{}, err
	}

	if err := f.spool.Cleanup(meetingID); err != nil {
		f.logger.Warn("cleaning spool", "meeting_id", meetingID, "error", err)
	}

	f.metrics.MeetingsCompleted.Inc()
	f.metrics.FinalizationSeconds.Observe(time.Since(start).Seconds())
	f.publisher.Publish(ctx, events.Event{
		Type:      events.TypeMeetingCompleted,
		MeetingID: meetingID,
		Message:   fmt.Sprintf("%d chunks, %d transcript chars", len(chunks), len(transcript)),
	})

	return FinalizeResult{
		Transcript:       transcript,
		TranscriptLength: len(transcript),
		ChunkCount:       len(chunks),
		Summary:          summary,
		Agenda:           agenda,
	}, nil
}

// AnswerQuestion answers an ad-hoc question about a finalized meeting. The
// interaction is persisted even when the model backend failed, with the
// error rendered as answer text.
func (f *Finalizer) AnswerQuestion(ctx context.Context, meetingID, question string) (QAResult, error) {
	if strings.TrimSpace(question) == "" {
		return QAResult{}, fmt.Errorf("question is required")
	}

	meeting, err := f.sessions.GetSession(meetingID)
	if err != nil {
		return QAResult{}, fmt.Errorf("resolving meeting %s: %w", meetingID, err)
	}
	if meeting.Status != storage.StatusCompleted || meeting.FullTranscript == "" {
		return QAResult{}, fmt.Errorf("meeting %s: %w", meetingID, ErrTranscriptUnavailable)
	}

	documents := f.documentTexts(meetingID)

	ans, askErr := f.asker.Ask(ctx, meeting.FullTranscript, documents, question)
	f.metrics.QuestionsAnswered.Inc()
	if askErr != nil {
		f.metrics.AnswerFailures.Inc()
		f.logger.Warn("answering failed", "meeting_id", meetingID, "error", askErr)
	}

	interaction := storage.QAInteraction{
		ID:           uuid.NewString(),
		MeetingID:    meetingID,
		Question:     question,
		Answer:       ans.Text,
		ModelUsed:    ans.Model,
		ResponseTime: ans.Elapsed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.store.SaveQAInteraction(interaction); err != nil {
		return QAResult{}, fmt.Errorf("saving interaction for meeting %s: %w", meetingID, err)
	}

	f.publisher.Publish(ctx, events.Event{
		Type:      events.TypeQuestionAnswered,
		MeetingID: meetingID,
		Message:   question,
	})

	return QAResult{Answer: ans.Text, Model: ans.Model, ResponseTime: ans.Elapsed}, nil
}

// askAbsorbing runs one finalization prompt. The model failure path already
// produces error-annotated text, so only the counter needs updating here.
func (f *Finalizer) askAbsorbing(ctx context.Context, transcript string, documents []string, question string) string {
	ans, err := f.asker.Ask(ctx, transcript, documents, question)
	if err != nil {
		f.metrics.AnswerFailures.Inc()
		f.logger.Warn("finalization prompt failed", "error", err)
	}
	return ans.Text
}

// documentTexts loads briefing document contents. Document lookup failures
// only cost context, never the operation.
func (f *Finalizer) documentTexts(meetingID string) []string {
	docs, err := f.store.ListDocuments(meetingID)
	if err != nil {
		f.logger.Warn("listing documents", "meeting_id", meetingID, "error", err)
		return nil
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.Content != "" {
			texts = append(texts, d.Content)
		}
	}
	return texts
}

// stitchTranscript joins the non-empty segments in chunk order with single
// spaces. Chunks whose transcription never succeeded are skipped without a
// placeholder, so a transcription gap is invisible in the result.
func stitchTranscript(chunks []storage.AudioChunk) string {
	segments := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.TranscriptSegment != "" {
			segments = append(segments, c.TranscriptSegment)
		}
	}
	return strings.Join(segments, " ")
}
