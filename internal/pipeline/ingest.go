// Package pipeline drives audio chunks from upload to transcript: ingestion,
// finalization with summary and agenda generation, ad-hoc Q&A, and background
// retry of failed transcriptions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicemind/voicemind/internal/audio"
	"github.com/voicemind/voicemind/internal/events"
	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/storage"
	"github.com/voicemind/voicemind/internal/transcribe"
)

const defaultTranscribeTimeout = 30 * time.Second

// IngestStore abstracts the chunk persistence the ingestor needs.
type IngestStore interface {
	GetMeeting(id string) (storage.Meeting, error)
	UpsertChunk(c storage.AudioChunk) error
	UpdateChunkTranscript(meetingID string, chunkNumber int, text string) error
	LogEvent(e storage.SystemEvent) error
}

// ChunkUpload is one uploaded slice of meeting audio. Audio is raw PCM,
// mono, 16-bit, at SampleRate.
type ChunkUpload struct {
	MeetingID   string
	ChunkNumber int
	Timestamp   int64 // ms offset from meeting start, caller-supplied
	SampleRate  int
	Audio       []byte
}

// IngestResult reports what the transcription step produced for a chunk.
// Transcript is empty when transcription failed or recognized nothing.
type IngestResult struct {
	Transcript string
	Language   string
}

// Ingestor persists uploaded chunks and drives each through transcription.
// Transcription failures degrade to an empty segment; only store failures
// and lifecycle violations are reported to the caller.
type Ingestor struct {
	store       IngestStore
	transcriber transcribe.Transcriber
	spool       *audio.Spool
	publisher   *events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewIngestor wires an Ingestor. If timeout is <= 0, transcription calls are
// bounded at 30s.
func NewIngestor(store IngestStore, tr transcribe.Transcriber, spool *audio.Spool, pub *events.Publisher, m *metrics.Metrics, logger *slog.Logger, timeout time.Duration) *Ingestor {
	if timeout <= 0 {
		timeout = defaultTranscribeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		store:       store,
		transcriber: tr,
		spool:       spool,
		publisher:   pub,
		metrics:     m,
		logger:      logger,
		timeout:     timeout,
		now:         time.Now,
	}
}

// IngestChunk stores one chunk and attempts to transcribe it. After a
// successful return the audio bytes are durably stored regardless of the
// transcription outcome. Re-uploading a chunk number overwrites the previous
// audio and wipes its segment, so a client may safely retry after a dropped
// response.
func (i *Ingestor) IngestChunk(ctx context.Context, up ChunkUpload) (IngestResult, error) {
	if up.MeetingID == "" {
		return IngestResult{}, fmt.Errorf("meeting id is required")
	}
	if up.ChunkNumber < 0 {
		return IngestResult{}, fmt.Errorf("chunk number must be non-negative, got %d", up.ChunkNumber)
	}
	if up.SampleRate <= 0 {
		return IngestResult{}, fmt.Errorf("sample rate must be positive, got %d", up.SampleRate)
	}
	if len(up.Audio) == 0 {
		return IngestResult{}, fmt.Errorf("chunk %d of meeting %s has no audio", up.ChunkNumber, up.MeetingID)
	}

	meeting, err := i.store.GetMeeting(up.MeetingID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("resolving meeting %s: %w", up.MeetingID, err)
	}
	if meeting.Status != storage.StatusRecording {
		return IngestResult{}, fmt.Errorf("meeting %s is %s: %w", up.MeetingID, meeting.Status, ErrSessionClosed)
	}

	chunk := storage.AudioChunk{
		MeetingID:      up.MeetingID,
		ChunkNumber:    up.ChunkNumber,
		ChunkTimestamp: up.Timestamp,
		AudioData:      up.Audio,
		SampleRate:     up.SampleRate,
		UpdatedAt:      i.now().UTC(),
	}
	if err := i.store.UpsertChunk(chunk); err != nil {
		return IngestResult{}, fmt.Errorf("storing chunk %d of meeting %s: %w", up.ChunkNumber, up.MeetingID, err)
	}
	i.metrics.ChunksIngested.Inc()
	i.metrics.IngestedBytes.Add(float64(len(up.Audio)))

	i.spoolChunk(up)

	text, language := i.transcribeChunk(ctx, up, meeting.Language)
	if text != "" {
		if err := i.store.UpdateChunkTranscript(up.MeetingID, up.ChunkNumber, text); err != nil {
			return IngestResult{}, fmt.Errorf("saving segment for chunk %d of meeting %s: %w", up.ChunkNumber, up.MeetingID, err)
		}
	}

	i.publisher.Publish(ctx, events.Event{
		Type:      events.TypeChunkIngested,
		MeetingID: up.MeetingID,
		Message:   fmt.Sprintf("chunk %d (%d bytes)", up.ChunkNumber, len(up.Audio)),
	})

	return IngestResult{Transcript: text, Language: language}, nil
}

// spoolChunk writes the WAV-framed audio to disk. Spool failures are logged
// and never affect the request.
func (i *Ingestor) spoolChunk(up ChunkUpload) {
	wav, err := audio.EncodeWAV(up.Audio, up.SampleRate)
	if err != nil {
		i.logger.Warn("framing chunk for spool", "meeting_id", up.MeetingID, "chunk", up.ChunkNumber, "error", err)
		return
	}
	if _, err := i.spool.WriteChunk(up.MeetingID, up.ChunkNumber, wav); err != nil {
		i.logger.Warn("spooling chunk", "meeting_id", up.MeetingID, "chunk", up.ChunkNumber, "error", err)
	}
}

// transcribeChunk runs one bounded transcription call. Failures are recorded
// as system events and degrade to an empty segment; the chunk stays eligible
// for the retry worker.
func (i *Ingestor) transcribeChunk(ctx context.Context, up ChunkUpload, language string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	res, err := i.transcriber.Transcribe(ctx, up.Audio, up.SampleRate, language)
	i.metrics.TranscriptionSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		i.metrics.TranscriptionFailures.Inc()
		i.logger.Warn("transcription failed", "meeting_id", up.MeetingID, "chunk", up.ChunkNumber, "error", err)
		if logErr := i.store.LogEvent(storage.SystemEvent{
			Level:     "ERROR",
			Message:   fmt.Sprintf("transcription of chunk %d failed: %v", up.ChunkNumber, err),
			MeetingID: up.MeetingID,
		}); logErr != nil {
			i.logger.Error("recording transcription failure", "meeting_id", up.MeetingID, "error", logErr)
		}
		i.publisher.Publish(ctx, events.Event{
			Type:      events.TypeTranscriptionFailed,
			MeetingID: up.MeetingID,
			Message:   fmt.Sprintf("chunk %d: %v", up.ChunkNumber, err),
		})
		return "", "unknown"
	}

	return res.Text, res.Language
}
