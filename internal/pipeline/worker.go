package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/storage"
	"github.com/voicemind/voicemind/internal/transcribe"
)

// RetryStore abstracts the queue of chunks whose transcription never
// succeeded.
type RetryStore interface {
	ListUntranscribedChunks(limit int) ([]storage.PendingChunk, error)
	UpdateChunkTranscript(meetingID string, chunkNumber int, text string) error
}

// Worker re-transcribes chunks that were stored with an empty segment, so a
// transient transcription outage heals without client re-uploads. Only
// chunks of still-recording meetings are retried; finalization freezes the
// transcript.
type Worker struct {
	store       RetryStore
	transcriber transcribe.Transcriber
	metrics     *metrics.Metrics
	poll        time.Duration
	batch       int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 15s;
// if batch is <= 0, it defaults to 10 chunks per sweep; if timeout is <= 0,
// each transcription call is bounded at 30s.
func NewWorker(store RetryStore, tr transcribe.Transcriber, m *metrics.Metrics, pollInterval time.Duration, batch int, timeout time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	if timeout <= 0 {
		timeout = defaultTranscribeTimeout
	}
	return &Worker{
		store:       store,
		transcriber: tr,
		metrics:     m,
		poll:        pollInterval,
		batch:       batch,
		timeout:     timeout,
		logger:      slog.Default(),
	}
}

// Run sweeps for pending chunks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("retry sweep failed", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce retries one batch of pending chunks and returns how many segments
// it recovered. A chunk that fails again stays pending for the next sweep.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.store.ListUntranscribedChunks(w.batch)
	if err != nil {
		return 0, fmt.Errorf("listing pending chunks: %w", err)
	}

	recovered := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}

		res, err := w.transcribe(ctx, p)
		if err != nil {
			w.logger.Warn("retry transcription failed", "meeting_id", p.MeetingID, "chunk", p.ChunkNumber, "error", err)
			continue
		}
		if res.Text == "" {
			continue
		}

		if err := w.store.UpdateChunkTranscript(p.MeetingID, p.ChunkNumber, res.Text); err != nil {
			w.logger.Error("saving retried segment", "meeting_id", p.MeetingID, "chunk", p.ChunkNumber, "error", err)
			continue
		}
		w.metrics.RetriedChunks.Inc()
		recovered++
	}
	return recovered, nil
}

// transcribe bounds one retry call so a hung backend cannot stall the sweep.
func (w *Worker) transcribe(ctx context.Context, p storage.PendingChunk) (transcribe.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.transcriber.Transcribe(ctx, p.AudioData, p.SampleRate, p.Language)
}
