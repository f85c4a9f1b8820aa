package api

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voicemind/voicemind/internal/audio"
	"github.com/voicemind/voicemind/internal/events"
	"github.com/voicemind/voicemind/internal/metrics"
	"github.com/voicemind/voicemind/internal/pipeline"
	"github.com/voicemind/voicemind/internal/session"
	"github.com/voicemind/voicemind/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := metrics.New(prometheus.NewRegistry())
	pub := events.NewPublisher(false, nil, "", slog.Default())
	spool := audio.NewSpool("")
	sessions := session.NewRegistry(store)
	finalizer := pipeline.NewFinalizer(store, sessions, &mockAsker{}, spool, pub, m, slog.Default())

	return MCPDeps{
		Store:     store,
		Sessions:  sessions,
		Finalizer: finalizer,
	}, store
}

func seedCompletedMeeting(t *testing.T, deps MCPDeps, id, transcript string) {
	t.Helper()
	if _, err := deps.Sessions.StartSession(id, "Planning", "en"); err != nil {
		t.Fatal(err)
	}
	if err := deps.Store.UpsertChunk(storage.AudioChunk{
		MeetingID:   id,
		ChunkNumber: 0,
		AudioData:   []byte{1, 2},
		SampleRate:  16000,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := deps.Sessions.CompleteSession(id, transcript, "the summary", "the agenda"); err != nil {
		t.Fatal(err)
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_ListMeetings(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	seedCompletedMeeting(t, deps, "m1", "we planned the release")
	handler := mcpListMeetings(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_meetings", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "m1") {
		t.Errorf("listing does not name the meeting: %s", toolText(t, result))
	}
}

func TestMCPTool_GetTranscript(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	seedCompletedMeeting(t, deps, "m1", "we planned the release")
	handler := mcpGetTranscript(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_transcript", map[string]interface{}{
		"meeting_id": "m1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toolText(t, result) != "we planned the release" {
		t.Errorf("transcript = %s", toolText(t, result))
	}
}

func TestMCPTool_GetTranscript_StillRecording(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	if _, err := deps.Sessions.StartSession("m1", "", "en"); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertChunk(storage.AudioChunk{
		MeetingID: "m1", ChunkNumber: 0, AudioData: []byte{1}, SampleRate: 16000, UpdatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateChunkTranscript("m1", 0, "partial text"); err != nil {
		t.Fatal(err)
	}
	handler := mcpGetTranscript(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_transcript", map[string]interface{}{
		"meeting_id": "m1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(toolText(t, result), "partial text") {
		t.Errorf("partial transcript missing: %s", toolText(t, result))
	}
}

func TestMCPTool_GetTranscript_MissingArg(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpGetTranscript(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_transcript", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing meeting_id")
	}
}

func TestMCPTool_GetSummary(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	seedCompletedMeeting(t, deps, "m1", "we planned the release")
	handler := mcpGetSummary(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_summary", map[string]interface{}{
		"meeting_id": "m1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	text := toolText(t, result)
	if !strings.Contains(text, "the summary") || !strings.Contains(text, "the agenda") {
		t.Errorf("summary payload = %s", text)
	}
}

func TestMCPTool_GetSummary_NotCompleted(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if _, err := deps.Sessions.StartSession("m1", "", "en"); err != nil {
		t.Fatal(err)
	}
	handler := mcpGetSummary(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_summary", map[string]interface{}{
		"meeting_id": "m1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected tool error for a recording meeting")
	}
}

func TestMCPTool_AskQuestion(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedCompletedMeeting(t, deps, "m1", "we planned the release")
	handler := mcpAskQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_question", map[string]interface{}{
		"meeting_id": "m1",
		"question":   "What was planned?",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", toolText(t, result))
	}
	if toolText(t, result) != "answer to: What was planned?" {
		t.Errorf("answer = %s", toolText(t, result))
	}

	history, err := store.ListQAInteractions("m1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("persisted %d interactions, want 1", len(history))
	}
}

func TestMCPTool_AskQuestion_UnknownMeeting(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAskQuestion(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_question", map[string]interface{}{
		"meeting_id": "ghost",
		"question":   "Anyone?",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown meeting")
	}
}
