package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding meetings, audio chunks, Q&A history,
// briefing documents, and system events.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "voicemind.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// chunkCountSubquery derives total_chunks at read time so the count can
// never drift from the chunks actually stored.
const chunkCountSubquery = "(SELECT COUNT(*) FROM audio_chunks c WHERE c.meeting_id = m.meeting_id)"

// --- Meetings ---

// CreateMeeting registers a new meeting in the recording state.
// Returns ErrAlreadyExists if the meeting id is already registered.
func (s *Store) CreateMeeting(m Meeting) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM meetings WHERE meeting_id = ?", m.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking meeting %s: %w", m.ID, err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	if _, err := tx.Exec(`
		INSERT INTO meetings (meeting_id, title, status, language, start_time)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Status, m.Language, m.StartTime.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting meeting %s: %w", m.ID, err)
	}

	return tx.Commit()
}

// GetMeeting returns a meeting with its derived chunk count.
func (s *Store) GetMeeting(id string) (Meeting, error) {
	var m Meeting
	var transcript, summary, agenda, endTime sql.NullString
	var startTime string
	err := s.db.QueryRow(`
		SELECT meeting_id, title, status, language, full_transcript, summary, agenda,
		       start_time, end_time, `+chunkCountSubquery+`
		FROM meetings m WHERE meeting_id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.Status, &m.Language, &transcript, &summary, &agenda,
		&startTime, &endTime, &m.TotalChunks)
	if err == sql.ErrNoRows {
		return Meeting{}, ErrNotFound
	}
	if err != nil {
		return Meeting{}, err
	}

	m.FullTranscript = transcript.String
	m.Summary = summary.String
	m.Agenda = agenda.String
	if m.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
		return Meeting{}, fmt.Errorf("parsing start_time: %w", err)
	}
	if endTime.Valid {
		if m.EndTime, err = time.Parse(time.RFC3339, endTime.String); err != nil {
			return Meeting{}, fmt.Errorf("parsing end_time: %w", err)
		}
	}
	return m, nil
}

// CompleteMeeting atomically transitions a meeting to completed, setting the
// transcript, summary, agenda, and end time in one statement.
// Returns ErrNotFound if the meeting does not exist.
func (s *Store) CompleteMeeting(id, transcript, summary, agenda string, endTime time.Time) error {
	res, err := s.db.Exec(`
		UPDATE meetings
		SET status = ?, full_transcript = ?, summary = ?, agenda = ?, end_time = ?
		WHERE meeting_id = ?`,
		StatusCompleted, transcript, summary, agenda, endTime.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMeetings returns all meetings ordered by start time descending.
// Audio and transcripts are omitted; chunk counts are derived.
func (s *Store) ListMeetings() ([]Meeting, error) {
	rows, err := s.db.Query(`
		SELECT meeting_id, title, status, language, start_time, end_time, ` + chunkCountSubquery + `
		FROM meetings m ORDER BY start_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Meeting
	for rows.Next() {
		var m Meeting
		var startTime string
		var endTime sql.NullString
		if err := rows.Scan(&m.ID, &m.Title, &m.Status, &m.Language, &startTime, &endTime, &m.TotalChunks); err != nil {
			return nil, err
		}
		if m.StartTime, err = time.Parse(time.RFC3339, startTime); err != nil {
			return nil, fmt.Errorf("parsing start_time: %w", err)
		}
		if endTime.Valid {
			if m.EndTime, err = time.Parse(time.RFC3339, endTime.String); err != nil {
				return nil, fmt.Errorf("parsing end_time: %w", err)
			}
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Audio chunks ---

// UpsertChunk stores a chunk keyed by (meeting_id, chunk_number). A repeated
// chunk number replaces the stored audio and transcript segment in a single
// atomic statement; it never creates a duplicate row.
func (s *Store) UpsertChunk(c AudioChunk) error {
	_, err := s.db.Exec(`
		INSERT INTO audio_chunks (meeting_id, chunk_number, chunk_timestamp, audio_data, sample_rate, transcript_segment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(meeting_id, chunk_number) DO UPDATE SET
			chunk_timestamp = excluded.chunk_timestamp,
			audio_data = excluded.audio_data,
			sample_rate = excluded.sample_rate,
			transcript_segment = excluded.transcript_segment,
			updated_at = excluded.updated_at`,
		c.MeetingID, c.ChunkNumber, c.ChunkTimestamp, c.AudioData, c.SampleRate,
		c.TranscriptSegment, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// UpdateChunkTranscript writes the recognized text for an already-stored chunk.
// Returns ErrNotFound if the chunk row does not exist.
func (s *Store) UpdateChunkTranscript(meetingID string, chunkNumber int, text string) error {
	res, err := s.db.Exec(`
		UPDATE audio_chunks SET transcript_segment = ?, updated_at = ?
		WHERE meeting_id = ? AND chunk_number = ?`,
		text, time.Now().UTC().Format(time.RFC3339), meetingID, chunkNumber,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListChunks returns all chunks for a meeting ordered by chunk number
// ascending. Audio bytes are not loaded.
func (s *Store) ListChunks(meetingID string) ([]AudioChunk, error) {
	rows, err := s.db.Query(`
		SELECT meeting_id, chunk_number, chunk_timestamp, sample_rate, transcript_segment, updated_at
		FROM audio_chunks WHERE meeting_id = ? ORDER BY chunk_number ASC`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AudioChunk
	for rows.Next() {
		var c AudioChunk
		var updatedAt string
		if err := rows.Scan(&c.MeetingID, &c.ChunkNumber, &c.ChunkTimestamp, &c.SampleRate, &c.TranscriptSegment, &updatedAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// CountChunks returns the number of chunks stored for a meeting.
func (s *Store) CountChunks(meetingID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM audio_chunks WHERE meeting_id = ?", meetingID).Scan(&n)
	return n, err
}

// ListUntranscribedChunks returns up to limit chunks with an empty transcript
// segment whose meeting is still recording, including the audio bytes needed
// for a retry.
func (s *Store) ListUntranscribedChunks(limit int) ([]PendingChunk, error) {
	rows, err := s.db.Query(`
		SELECT c.meeting_id, c.chunk_number, c.sample_rate, c.audio_data, m.language
		FROM audio_chunks c
		JOIN meetings m ON m.meeting_id = c.meeting_id
		WHERE c.transcript_segment = '' AND m.status = ?
		ORDER BY c.updated_at ASC
		LIMIT ?`, StatusRecording, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PendingChunk
	for rows.Next() {
		var p PendingChunk
		if err := rows.Scan(&p.MeetingID, &p.ChunkNumber, &p.SampleRate, &p.AudioData, &p.Language); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// --- Q&A history ---

func (s *Store) SaveQAInteraction(q QAInteraction) error {
	_, err := s.db.Exec(`
		INSERT INTO qa_history (id, meeting_id, question, answer, model_used, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.MeetingID, q.Question, q.Answer, q.ModelUsed,
		q.ResponseTime.Milliseconds(), q.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListQAInteractions(meetingID string, limit int) ([]QAInteraction, error) {
	rows, err := s.db.Query(`
		SELECT id, meeting_id, question, answer, model_used, response_time_ms, created_at
		FROM qa_history WHERE meeting_id = ? ORDER BY created_at DESC LIMIT ?`, meetingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []QAInteraction
	for rows.Next() {
		var q QAInteraction
		var responseMs int64
		var createdAt string
		if err := rows.Scan(&q.ID, &q.MeetingID, &q.Question, &q.Answer, &q.ModelUsed, &responseMs, &createdAt); err != nil {
			return nil, err
		}
		q.ResponseTime = time.Duration(responseMs) * time.Millisecond
		if q.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// --- Briefing documents ---

func (s *Store) SaveDocument(d MeetingDocument) error {
	_, err := s.db.Exec(`
		INSERT INTO meeting_documents (id, meeting_id, title, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.MeetingID, d.Title, d.Content, d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListDocuments(meetingID string) ([]MeetingDocument, error) {
	rows, err := s.db.Query(`
		SELECT id, meeting_id, title, content, created_at
		FROM meeting_documents WHERE meeting_id = ? ORDER BY created_at ASC`, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MeetingDocument
	for rows.Next() {
		var d MeetingDocument
		var createdAt string
		if err := rows.Scan(&d.ID, &d.MeetingID, &d.Title, &d.Content, &createdAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// --- System events ---

// LogEvent appends an audit event. The log is write-only for the pipeline.
func (s *Store) LogEvent(e SystemEvent) error {
	var meetingID, stackTrace any
	if e.MeetingID != "" {
		meetingID = e.MeetingID
	}
	if e.StackTrace != "" {
		stackTrace = e.StackTrace
	}
	_, err := s.db.Exec(`
		INSERT INTO system_events (level, message, meeting_id, stack_trace, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.Level, e.Message, meetingID, stackTrace, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
