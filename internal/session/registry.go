// Package session enforces the meeting lifecycle: recording at start,
// completed exactly once at finalization, never back.
package session

import (
	"fmt"
	"time"

	"github.com/voicemind/voicemind/internal/storage"
)

// Store is the slice of the persistence layer the registry needs.
type Store interface {
	CreateMeeting(m storage.Meeting) error
	GetMeeting(id string) (storage.Meeting, error)
	CompleteMeeting(id, transcript, summary, agenda string, endTime time.Time) error
	ListMeetings() ([]storage.Meeting, error)
}

// Registry tracks one record per meeting and owns its state machine.
type Registry struct {
	store Store
	now   func() time.Time
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store, now: time.Now}
}

// StartSession registers a new meeting in the recording state. A duplicate
// meeting id is an error, not a no-op: the caller owns id uniqueness.
func (r *Registry) StartSession(meetingID, title, language string) (storage.Meeting, error) {
	if meetingID == "" {
		return storage.Meeting{}, fmt.Errorf("meeting id is required")
	}
	if language == "" {
		language = "auto"
	}

	m := storage.Meeting{
		ID:        meetingID,
		Title:     title,
		Status:    storage.StatusRecording,
		Language:  language,
		StartTime: r.now().UTC(),
	}
	if err := r.store.CreateMeeting(m); err != nil {
		return storage.Meeting{}, fmt.Errorf("starting session %s: %w", meetingID, err)
	}
	return m, nil
}

// GetSession returns the meeting record with its derived chunk count.
func (r *Registry) GetSession(meetingID string) (storage.Meeting, error) {
	return r.store.GetMeeting(meetingID)
}

// CompleteSession atomically transitions recording -> completed, setting the
// transcript, summary, agenda, and end time in one operation. Calling it on
// an already-completed meeting overwrites the previous result
// (last-writer-wins).
func (r *Registry) CompleteSession(meetingID, transcript, summary, agenda string) error {
	if err := r.store.CompleteMeeting(meetingID, transcript, summary, agenda, r.now().UTC()); err != nil {
		return fmt.Errorf("completing session %s: %w", meetingID, err)
	}
	return nil
}

// ListSessions returns meeting summaries ordered by start time descending.
func (r *Registry) ListSessions() ([]storage.Meeting, error) {
	return r.store.ListMeetings()
}
