package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// Spool writes raw chunk audio to a per-meeting directory so recordings can
// be recovered or reprocessed outside the database. A Spool with an empty
// root is a no-op.
type Spool struct {
	root string
}

// NewSpool creates a Spool rooted at dir. Pass "" to disable file spooling.
func NewSpool(dir string) *Spool {
	return &Spool{root: dir}
}

// WriteChunk stores the WAV-framed chunk under <root>/<meetingID>/chunk_NNNN.wav,
// replacing any previous upload of the same chunk number.
func (s *Spool) WriteChunk(meetingID string, chunkNumber int, wav []byte) (string, error) {
	if s.root == "" {
		return "", nil
	}
	dir := filepath.Join(s.root, meetingID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating spool directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("chunk_%04d.wav", chunkNumber))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("writing chunk file: %w", err)
	}
	return path, nil
}

// Cleanup removes the spool directory for a finished meeting.
func (s *Spool) Cleanup(meetingID string) error {
	if s.root == "" {
		return nil
	}
	return os.RemoveAll(filepath.Join(s.root, meetingID))
}
