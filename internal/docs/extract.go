// Package docs attaches briefing documents to meetings so finalization and
// Q&A prompts can draw on context beyond the transcript.
package docs

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/voicemind/voicemind/internal/storage"
)

const maxDocumentBytes = 10 << 20 // 10 MiB

var pdfMagic = []byte("%PDF-")

// DocStore is the persistence slice the manager needs.
type DocStore interface {
	GetMeeting(id string) (storage.Meeting, error)
	SaveDocument(d storage.MeetingDocument) error
	ListDocuments(meetingID string) ([]storage.MeetingDocument, error)
}

// Manager extracts text from uploaded briefing documents and stores it
// against a meeting. PDF payloads are converted to plain text; anything else
// must already be valid UTF-8 text.
type Manager struct {
	store DocStore
}

func NewManager(store DocStore) *Manager {
	return &Manager{store: store}
}

// Attach extracts the text of one document and stores it for meetingID.
// The meeting must exist; attaching works in any lifecycle state so briefs
// can arrive before the first chunk or after finalization.
func (m *Manager) Attach(meetingID, title string, data []byte) (storage.MeetingDocument, error) {
	if meetingID == "" {
		return storage.MeetingDocument{}, fmt.Errorf("meeting id is required")
	}
	if len(data) == 0 {
		return storage.MeetingDocument{}, fmt.Errorf("document %q is empty", title)
	}
	if len(data) > maxDocumentBytes {
		return storage.MeetingDocument{}, fmt.Errorf("document %q exceeds %d bytes", title, maxDocumentBytes)
	}

	if _, err := m.store.GetMeeting(meetingID); err != nil {
		return storage.MeetingDocument{}, fmt.Errorf("resolving meeting %s: %w", meetingID, err)
	}

	content, err := ExtractText(data)
	if err != nil {
		return storage.MeetingDocument{}, fmt.Errorf("extracting text of %q: %w", title, err)
	}
	if content == "" {
		return storage.MeetingDocument{}, fmt.Errorf("document %q contains no extractable text", title)
	}

	doc := storage.MeetingDocument{
		ID:        uuid.NewString(),
		MeetingID: meetingID,
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.SaveDocument(doc); err != nil {
		return storage.MeetingDocument{}, fmt.Errorf("saving document %q: %w", title, err)
	}
	return doc, nil
}

// List returns the documents attached to a meeting.
func (m *Manager) List(meetingID string) ([]storage.MeetingDocument, error) {
	return m.store.ListDocuments(meetingID)
}

// ExtractText converts a document payload to plain text. PDF files are
// detected by their magic bytes; everything else is validated as UTF-8 and
// returned trimmed.
func ExtractText(data []byte) (string, error) {
	if bytes.HasPrefix(data, pdfMagic) {
		return extractPDF(data)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("unsupported document format: not PDF and not UTF-8 text")
	}
	return strings.TrimSpace(string(data)), nil
}

// extractPDF pulls the plain text out of a PDF payload. The parser panics on
// some malformed files, so the panic is converted into an error here.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parsing pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
