package pipeline

import "errors"

// ErrNoChunks is returned when finalization is requested for a meeting with
// zero stored chunks. The meeting's status is left untouched.
var ErrNoChunks = errors.New("no audio chunks recorded")

// ErrTranscriptUnavailable is returned when a question is asked about a
// meeting that has not been finalized yet.
var ErrTranscriptUnavailable = errors.New("transcript not available")

// ErrSessionClosed is returned when a chunk arrives for a meeting that has
// already been completed.
var ErrSessionClosed = errors.New("session closed")
