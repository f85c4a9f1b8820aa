package storage

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateMeeting(t *testing.T, s *Store, id string) {
	t.Helper()
	m := Meeting{ID: id, Status: StatusRecording, Language: "auto", StartTime: time.Now().UTC()}
	if err := s.CreateMeeting(m); err != nil {
		t.Fatalf("CreateMeeting(%q) failed: %v", id, err)
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies the migration created the expected indexes.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_meetings_start_time", "idx_chunks_untranscribed", "idx_qa_meeting", "idx_documents_meeting", "idx_events_meeting"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestCreateAndGetMeeting(t *testing.T) {
	s := openTestStore(t)

	start := time.Now().UTC().Truncate(time.Second)
	want := Meeting{ID: "standup-42", Title: "Daily standup", Status: StatusRecording, Language: "en", StartTime: start}
	if err := s.CreateMeeting(want); err != nil {
		t.Fatalf("CreateMeeting failed: %v", err)
	}

	got, err := s.GetMeeting("standup-42")
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if got.Title != want.Title || got.Status != StatusRecording || got.Language != "en" {
		t.Errorf("got %+v, want title/status/language from %+v", got, want)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("StartTime = %v, want %v", got.StartTime, start)
	}
	if got.FullTranscript != "" || got.Summary != "" || got.Agenda != "" {
		t.Errorf("new meeting should have empty transcript/summary/agenda, got %+v", got)
	}
	if got.TotalChunks != 0 {
		t.Errorf("TotalChunks = %d, want 0", got.TotalChunks)
	}
	if !got.EndTime.IsZero() {
		t.Errorf("EndTime = %v, want zero", got.EndTime)
	}
}

func TestCreateMeetingDuplicate(t *testing.T) {
	s := openTestStore(t)

	mustCreateMeeting(t, s, "m1")
	err := s.CreateMeeting(Meeting{ID: "m1", Status: StatusRecording, Language: "auto", StartTime: time.Now()})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate CreateMeeting error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetMeetingNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetMeeting("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeeting error = %v, want ErrNotFound", err)
	}
}

func TestCompleteMeeting(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	end := time.Now().UTC().Truncate(time.Second)
	if err := s.CompleteMeeting("m1", "full text", "the summary", "the agenda", end); err != nil {
		t.Fatalf("CompleteMeeting failed: %v", err)
	}

	m, err := s.GetMeeting("m1")
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if m.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", m.Status, StatusCompleted)
	}
	if m.FullTranscript != "full text" || m.Summary != "the summary" || m.Agenda != "the agenda" {
		t.Errorf("completion fields not set: %+v", m)
	}
	if !m.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", m.EndTime, end)
	}
}

func TestCompleteMeetingNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.CompleteMeeting("ghost", "t", "s", "a", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteMeeting error = %v, want ErrNotFound", err)
	}
}

func TestListMeetingsOrder(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		m := Meeting{ID: id, Status: StatusRecording, Language: "auto", StartTime: base.Add(time.Duration(i) * time.Hour)}
		if err := s.CreateMeeting(m); err != nil {
			t.Fatalf("CreateMeeting(%q): %v", id, err)
		}
	}

	list, err := s.ListMeetings()
	if err != nil {
		t.Fatalf("ListMeetings failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestUpsertChunkOverwrites(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	first := AudioChunk{MeetingID: "m1", ChunkNumber: 3, ChunkTimestamp: 30000, AudioData: []byte{1, 2, 3}, SampleRate: 16000, TranscriptSegment: "first take"}
	if err := s.UpsertChunk(first); err != nil {
		t.Fatalf("first UpsertChunk failed: %v", err)
	}

	second := first
	second.AudioData = []byte{9, 9, 9, 9}
	second.TranscriptSegment = ""
	if err := s.UpsertChunk(second); err != nil {
		t.Fatalf("second UpsertChunk failed: %v", err)
	}

	n, err := s.CountChunks("m1")
	if err != nil {
		t.Fatalf("CountChunks failed: %v", err)
	}
	if n != 1 {
		t.Errorf("CountChunks = %d, want 1 (overwrite, not duplicate)", n)
	}

	var audio []byte
	var segment string
	err = s.db.QueryRow("SELECT audio_data, transcript_segment FROM audio_chunks WHERE meeting_id = 'm1' AND chunk_number = 3").Scan(&audio, &segment)
	if err != nil {
		t.Fatalf("reading chunk row: %v", err)
	}
	if !bytes.Equal(audio, []byte{9, 9, 9, 9}) {
		t.Errorf("audio = %v, want latest bytes only", audio)
	}
	if segment != "" {
		t.Errorf("segment = %q, want empty (replaced alongside audio)", segment)
	}
}

func TestUpdateChunkTranscript(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	c := AudioChunk{MeetingID: "m1", ChunkNumber: 0, AudioData: []byte{0}, SampleRate: 16000}
	if err := s.UpsertChunk(c); err != nil {
		t.Fatalf("UpsertChunk failed: %v", err)
	}
	if err := s.UpdateChunkTranscript("m1", 0, "hello there"); err != nil {
		t.Fatalf("UpdateChunkTranscript failed: %v", err)
	}

	chunks, err := s.ListChunks("m1")
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	if len(chunks) != 1 || chunks[0].TranscriptSegment != "hello there" {
		t.Errorf("chunks = %+v, want one chunk with segment %q", chunks, "hello there")
	}

	if err := s.UpdateChunkTranscript("m1", 99, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateChunkTranscript on missing chunk = %v, want ErrNotFound", err)
	}
}

func TestListChunksOrderedByNumber(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	// Insert out of arrival order.
	for _, n := range []int{5, 0, 2, 9, 1} {
		c := AudioChunk{MeetingID: "m1", ChunkNumber: n, AudioData: []byte{byte(n)}, SampleRate: 16000}
		if err := s.UpsertChunk(c); err != nil {
			t.Fatalf("UpsertChunk(%d): %v", n, err)
		}
	}

	chunks, err := s.ListChunks("m1")
	if err != nil {
		t.Fatalf("ListChunks failed: %v", err)
	}
	want := []int{0, 1, 2, 5, 9}
	if len(chunks) != len(want) {
		t.Fatalf("len = %d, want %d", len(chunks), len(want))
	}
	for i, n := range want {
		if chunks[i].ChunkNumber != n {
			t.Errorf("chunks[%d].ChunkNumber = %d, want %d", i, chunks[i].ChunkNumber, n)
		}
	}
}

func TestListUntranscribedChunks(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "live")
	mustCreateMeeting(t, s, "done")

	chunks := []AudioChunk{
		{MeetingID: "live", ChunkNumber: 0, AudioData: []byte{1}, SampleRate: 16000, TranscriptSegment: "ok"},
		{MeetingID: "live", ChunkNumber: 1, AudioData: []byte{2}, SampleRate: 16000},
		{MeetingID: "done", ChunkNumber: 0, AudioData: []byte{3}, SampleRate: 16000},
	}
	for _, c := range chunks {
		if err := s.UpsertChunk(c); err != nil {
			t.Fatalf("UpsertChunk: %v", err)
		}
	}
	if err := s.CompleteMeeting("done", "t", "s", "a", time.Now()); err != nil {
		t.Fatalf("CompleteMeeting: %v", err)
	}

	pending, err := s.ListUntranscribedChunks(10)
	if err != nil {
		t.Fatalf("ListUntranscribedChunks failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len = %d, want 1 (only the live meeting's empty chunk)", len(pending))
	}
	if pending[0].MeetingID != "live" || pending[0].ChunkNumber != 1 {
		t.Errorf("pending = %+v", pending[0])
	}
	if !bytes.Equal(pending[0].AudioData, []byte{2}) {
		t.Errorf("AudioData = %v, want original bytes", pending[0].AudioData)
	}
}

func TestChunkCountDerived(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	for n := 0; n < 4; n++ {
		c := AudioChunk{MeetingID: "m1", ChunkNumber: n, AudioData: []byte{byte(n)}, SampleRate: 16000}
		if err := s.UpsertChunk(c); err != nil {
			t.Fatalf("UpsertChunk(%d): %v", n, err)
		}
	}
	// Re-upload one chunk; the derived count must not change.
	if err := s.UpsertChunk(AudioChunk{MeetingID: "m1", ChunkNumber: 2, AudioData: []byte{42}, SampleRate: 16000}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	m, err := s.GetMeeting("m1")
	if err != nil {
		t.Fatalf("GetMeeting failed: %v", err)
	}
	if m.TotalChunks != 4 {
		t.Errorf("TotalChunks = %d, want 4", m.TotalChunks)
	}
}

func TestSaveAndListQAInteractions(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	q := QAInteraction{
		ID:           "qa-1",
		MeetingID:    "m1",
		Question:     "Who owns the rollout?",
		Answer:       "Dana owns the rollout.",
		ModelUsed:    "gpt-4o-mini",
		ResponseTime: 1200 * time.Millisecond,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.SaveQAInteraction(q); err != nil {
		t.Fatalf("SaveQAInteraction failed: %v", err)
	}

	list, err := s.ListQAInteractions("m1", 10)
	if err != nil {
		t.Fatalf("ListQAInteractions failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	got := list[0]
	if got.Question != q.Question || got.Answer != q.Answer || got.ModelUsed != q.ModelUsed {
		t.Errorf("got %+v, want %+v", got, q)
	}
	if got.ResponseTime != q.ResponseTime {
		t.Errorf("ResponseTime = %v, want %v", got.ResponseTime, q.ResponseTime)
	}
}

func TestSaveAndListDocuments(t *testing.T) {
	s := openTestStore(t)
	mustCreateMeeting(t, s, "m1")

	d := MeetingDocument{ID: "doc-1", MeetingID: "m1", Title: "Q3 brief", Content: "goals for Q3", CreatedAt: time.Now().UTC()}
	if err := s.SaveDocument(d); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	docs, err := s.ListDocuments("m1")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Content != "goals for Q3" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLogEvent(t *testing.T) {
	s := openTestStore(t)

	if err := s.LogEvent(SystemEvent{Level: "INFO", Message: "server started"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}
	if err := s.LogEvent(SystemEvent{Level: "ERROR", Message: "chunk failed", MeetingID: "m1", StackTrace: "trace"}); err != nil {
		t.Fatalf("LogEvent with meeting failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM system_events").Scan(&count); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if count != 2 {
		t.Errorf("event count = %d, want 2", count)
	}

	var meetingID any
	if err := s.db.QueryRow("SELECT meeting_id FROM system_events WHERE level = 'INFO'").Scan(&meetingID); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if meetingID != nil {
		t.Errorf("meeting_id = %v, want NULL for global event", meetingID)
	}
}
