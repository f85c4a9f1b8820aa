// Package api exposes the pipeline over HTTP and MCP.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicemind/voicemind/internal/docs"
	"github.com/voicemind/voicemind/internal/pipeline"
	"github.com/voicemind/voicemind/internal/session"
	"github.com/voicemind/voicemind/internal/storage"
)

const maxChunkBodySize = 10 << 20 // 10MB
const maxDocumentBodySize = 16 << 20

type StartMeetingRequest struct {
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Language  string `json:"language"`
}

type QuestionRequest struct {
	Question string `json:"question"`
}

type DocumentRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	ContentBase64 string `json:"content_base64"`
}

type AppDeps struct {
	Store     *storage.Store
	Sessions  *session.Registry
	Ingestor  *pipeline.Ingestor
	Finalizer *pipeline.Finalizer
	Documents *docs.Manager
	Gatherer  prometheus.Gatherer // optional; if nil, /metrics is not mounted
	Token     string              // optional; if empty, /api is unauthenticated
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/meetings", handleStartMeeting(deps))
		r.Get("/meetings", handleListMeetings(deps))
		r.Post("/meetings/{id}/chunks", handleUploadChunk(deps))
		r.Post("/meetings/{id}/end", handleEndMeeting(deps))
		r.Post("/meetings/{id}/questions", handleAskQuestion(deps))
		r.Get("/meetings/{id}/questions", handleListQuestions(deps))
		r.Get("/meetings/{id}/summary", handleGetSummary(deps))
		r.Get("/meetings/{id}/transcript", handleGetTranscript(deps))
		r.Post("/meetings/{id}/documents", handleAttachDocument(deps))
	})

	return r
}

func handleHealth(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if _, err := deps.Sessions.ListSessions(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status})
	}
}

func handleStartMeeting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartMeetingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.MeetingID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "meeting_id is required")
			return
		}

		meeting, err := deps.Sessions.StartSession(req.MeetingID, req.Title, req.Language)
		if err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, meetingJSON(meeting))
	}
}

func handleListMeetings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetings, err := deps.Sessions.ListSessions()
		if err != nil {
			pipelineError(w, err)
			return
		}
		out := make([]map[string]any, 0, len(meetings))
		for _, m := range meetings {
			out = append(out, meetingJSON(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"meetings": out})
	}
}

func handleUploadChunk(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		chunkNumber, err := strconv.Atoi(r.Header.Get("X-Chunk-Number"))
		if err != nil || chunkNumber < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "X-Chunk-Number header must be a non-negative integer")
			return
		}
		sampleRate, err := strconv.Atoi(r.Header.Get("X-Sample-Rate"))
		if err != nil || sampleRate <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "X-Sample-Rate header must be a positive integer")
			return
		}
		var timestamp int64
		if ts := r.Header.Get("X-Timestamp"); ts != "" {
			timestamp, err = strconv.ParseInt(ts, 10, 64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "X-Timestamp header must be an integer")
				return
			}
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxChunkBodySize)
		audio, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "reading audio body: %v", err)
			return
		}
		if len(audio) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "request body must carry raw PCM audio")
			return
		}

		res, err := deps.Ingestor.IngestChunk(r.Context(), pipeline.ChunkUpload{
			MeetingID:   meetingID,
			ChunkNumber: chunkNumber,
			Timestamp:   timestamp,
			SampleRate:  sampleRate,
			Audio:       audio,
		})
		if err != nil {
			pipelineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meeting_id":        meetingID,
			"chunk_number":      chunkNumber,
			"transcript":        res.Transcript,
			"language_detected": res.Language,
		})
	}
}

func handleEndMeeting(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		res, err := deps.Finalizer.EndSession(r.Context(), meetingID)
		if err != nil {
			pipelineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meeting_id":        meetingID,
			"status":            storage.StatusCompleted,
			"transcript_length": res.TranscriptLength,
			"total_chunks":      res.ChunkCount,
			"summary":           res.Summary,
			"agenda":            res.Agenda,
		})
	}
}

func handleAskQuestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		var req QuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		res, err := deps.Finalizer.AnswerQuestion(r.Context(), meetingID, req.Question)
		if err != nil {
			pipelineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meeting_id":       meetingID,
			"question":         req.Question,
			"answer":           res.Answer,
			"model_used":       res.Model,
			"response_time_ms": res.ResponseTime.Milliseconds(),
		})
	}
}

func handleListQuestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		limit := 50
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
				return
			}
			limit = parsed
		}

		if _, err := deps.Sessions.GetSession(meetingID); err != nil {
			pipelineError(w, err)
			return
		}
		history, err := deps.Store.ListQAInteractions(meetingID, limit)
		if err != nil {
			pipelineError(w, err)
			return
		}

		out := make([]map[string]any, 0, len(history))
		for _, q := range history {
			out = append(out, map[string]any{
				"id":               q.ID,
				"question":         q.Question,
				"answer":           q.Answer,
				"model_used":       q.ModelUsed,
				"response_time_ms": q.ResponseTime.Milliseconds(),
				"created_at":       q.CreatedAt.Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"meeting_id": meetingID, "questions": out})
	}
}

func handleGetSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		meeting, err := deps.Sessions.GetSession(meetingID)
		if err != nil {
			pipelineError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"meeting_id": meeting.ID,
			"title":      meeting.Title,
			"status":     meeting.Status,
			"summary":    meeting.Summary,
			"agenda":     meeting.Agenda,
		})
	}
}

func handleGetTranscript(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		meeting, err := deps.Sessions.GetSession(meetingID)
		if err != nil {
			pipelineError(w, err)
			return
		}
		chunks, err := deps.Store.ListChunks(meetingID)
		if err != nil {
			pipelineError(w, err)
			return
		}

		segments := make([]map[string]any, 0, len(chunks))
		for _, c := range chunks {
			segments = append(segments, map[string]any{
				"chunk_number": c.ChunkNumber,
				"timestamp_ms": c.ChunkTimestamp,
				"text":         c.TranscriptSegment,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"meeting_id":      meeting.ID,
			"status":          meeting.Status,
			"full_transcript": meeting.FullTranscript,
			"segments":        segments,
		})
	}
}

func handleAttachDocument(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meetingID := chi.URLParam(r, "id")

		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		var req DocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" && req.ContentBase64 == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of content or content_base64 is required")
			return
		}

		data := []byte(req.Content)
		if req.ContentBase64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			data = decoded
		}

		doc, err := deps.Documents.Attach(meetingID, req.Title, data)
		if err != nil {
			pipelineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"document_id": doc.ID, "title": doc.Title})
	}
}

func meetingJSON(m storage.Meeting) map[string]any {
	out := map[string]any{
		"meeting_id":   m.ID,
		"title":        m.Title,
		"status":       m.Status,
		"language":     m.Language,
		"total_chunks": m.TotalChunks,
		"start_time":   m.StartTime.Format(time.RFC3339),
	}
	if !m.EndTime.IsZero() {
		out["end_time"] = m.EndTime.Format(time.RFC3339)
	}
	return out
}

// pipelineError maps domain sentinel errors to HTTP responses; anything
// unrecognized is a store or internal failure.
func pipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		httpError(w, http.StatusConflict, "already_exists", "%v", err)
	case errors.Is(err, pipeline.ErrSessionClosed):
		httpError(w, http.StatusConflict, "session_closed", "%v", err)
	case errors.Is(err, pipeline.ErrNoChunks):
		httpError(w, http.StatusNotFound, "no_chunks", "%v", err)
	case errors.Is(err, pipeline.ErrTranscriptUnavailable):
		httpError(w, http.StatusBadRequest, "transcript_unavailable", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
