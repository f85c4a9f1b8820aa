package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type capturingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *capturingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *capturingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishKeysByMeetingID(t *testing.T) {
	w := &capturingWriter{}
	p := &Publisher{writer: w, logger: slog.Default()}

	p.Publish(context.Background(), Event{
		Type:      TypeChunkIngested,
		MeetingID: "m1",
		Message:   "chunk 3",
	})

	if len(w.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "m1" {
		t.Errorf("key = %q, want meeting id", w.msgs[0].Key)
	}

	var got Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("unmarshaling event value: %v", err)
	}
	if got.Type != TypeChunkIngested || got.Message != "chunk 3" {
		t.Errorf("event = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not defaulted")
	}
}

func TestPublishKeepsExplicitTimestamp(t *testing.T) {
	w := &capturingWriter{}
	p := &Publisher{writer: w, logger: slog.Default()}
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p.Publish(context.Background(), Event{Type: TypeMeetingStarted, MeetingID: "m1", Timestamp: ts})

	var got Event
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, ts)
	}
}

func TestDisabledPublisherIsNoOp(t *testing.T) {
	p := NewPublisher(false, []string{"broker:9092"}, "topic", slog.Default())

	// Must not panic or block without a broker.
	p.Publish(context.Background(), Event{Type: TypeMeetingCompleted, MeetingID: "m1"})
	if err := p.Close(); err != nil {
		t.Fatalf("Close on disabled publisher: %v", err)
	}
}

func TestEnabledWithoutBrokersDegrades(t *testing.T) {
	p := NewPublisher(true, nil, "topic", slog.Default())
	if p.writer != nil {
		t.Fatal("publisher without brokers should be log-only")
	}
}

func TestCloseClosesWriter(t *testing.T) {
	w := &capturingWriter{}
	p := &Publisher{writer: w, logger: slog.Default()}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Error("underlying writer not closed")
	}
}
