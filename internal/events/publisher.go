// Package events publishes pipeline lifecycle notifications to Kafka.
// Publishing is best-effort: a broker outage must never fail an upload or a
// finalization, so errors are logged and swallowed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types emitted by the pipeline.
const (
	TypeMeetingStarted      = "meeting.started"
	TypeChunkIngested       = "chunk.ingested"
	TypeTranscriptionFailed = "transcription.failed"
	TypeMeetingCompleted    = "meeting.completed"
	TypeQuestionAnswered    = "question.answered"
)

// Event is one pipeline notification. MeetingID keys the Kafka message so
// all events for a meeting land on the same partition.
type Event struct {
	Type      string    `json:"type"`
	MeetingID string    `json:"meeting_id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends events to a Kafka topic. A disabled Publisher logs events
// at debug level instead, so call sites never branch on configuration.
type Publisher struct {
	writer kafkaWriter
	logger *slog.Logger
}

// NewPublisher builds a Kafka-backed publisher. With enabled false or no
// brokers it degrades to log-only mode.
func NewPublisher(enabled bool, brokers []string, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if !enabled || len(brokers) == 0 {
		return &Publisher{logger: logger}
	}
	return &Publisher{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			Async:        true,
		},
	}
}

// Publish emits one event. Failures are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if p.writer == nil {
		p.logger.Debug("event (kafka disabled)", "type", e.Type, "meeting_id", e.MeetingID, "message", e.Message)
		return
	}

	value, err := json.Marshal(e)
	if err != nil {
		p.logger.Error("marshaling event", "type", e.Type, "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.MeetingID),
		Value: value,
	})
	if err != nil {
		p.logger.Error("publishing event", "type", e.Type, "meeting_id", e.MeetingID, "error", err)
	}
}

// Close flushes and closes the underlying writer, if any.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
