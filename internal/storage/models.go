package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a meeting id is registered twice.
var ErrAlreadyExists = errors.New("already exists")

// Meeting statuses.
const (
	StatusRecording = "recording"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Meeting struct {
	ID             string
	Title          string
	Status         string // "recording", "completed", "failed"
	Language       string // ISO code or "auto"
	FullTranscript string
	Summary        string
	Agenda         string
	TotalChunks    int // derived from audio_chunks, never stored
	StartTime      time.Time
	EndTime        time.Time // zero until completion
}

type AudioChunk struct {
	MeetingID         string
	ChunkNumber       int
	ChunkTimestamp    int64 // ms offset from meeting start, caller-supplied
	AudioData         []byte
	SampleRate        int
	TranscriptSegment string
	UpdatedAt         time.Time
}

// PendingChunk is a chunk whose transcription never succeeded, joined with
// the language of its still-recording meeting for retry.
type PendingChunk struct {
	MeetingID   string
	ChunkNumber int
	SampleRate  int
	AudioData   []byte
	Language    string
}

type QAInteraction struct {
	ID           string
	MeetingID    string
	Question     string
	Answer       string
	ModelUsed    string
	ResponseTime time.Duration
	CreatedAt    time.Time
}

type MeetingDocument struct {
	ID        string
	MeetingID string
	Title     string
	Content   string
	CreatedAt time.Time
}

type SystemEvent struct {
	Level      string
	Message    string
	MeetingID  string
	StackTrace string
}
