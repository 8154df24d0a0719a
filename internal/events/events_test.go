package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	p := New(nil, "topic", nil)
	if _, ok := p.(Nop); !ok {
		t.Fatalf("expected Nop publisher, got %T", p)
	}
	if err := p.Publish(context.Background(), Event{Type: TimelineReordered}); err != nil {
		t.Fatalf("nop publish: %v", err)
	}
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: log.New(io.Discard)}

	err := p.Publish(context.Background(), Event{
		Type:    TimelineEntryCreated,
		Key:     "tl_1",
		Payload: map[string]any{"title": "Founded"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}

	msg := w.msgs[0]
	if string(msg.Key) != "tl_1" {
		t.Fatalf("unexpected key %q", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TimelineEntryCreated {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Type != TimelineEntryCreated || decoded.OccurredAt.IsZero() {
		t.Fatalf("unexpected event %+v", decoded)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("close: %v closed=%v", err, w.closed)
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, logger: log.New(io.Discard)}

	err := p.Publish(context.Background(), Event{Type: SiteSettingsSaved, Key: "site"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
