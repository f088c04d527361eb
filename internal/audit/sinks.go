package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// LogSink writes events as structured audit log lines.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	args := []any{
		"log_type", "audit",
		"event_id", event.ID,
		"request_id", event.RequestID,
	}
	if event.ImportID != 0 {
		args = append(args, "import_id", event.ImportID)
	}
	if event.CitizenID != nil {
		args = append(args, "citizen_id", *event.CitizenID)
	}
	if event.Citizens > 0 {
		args = append(args, "citizens", event.Citizens)
	}
	if len(event.Fields) > 0 {
		args = append(args, "fields", event.Fields)
	}
	s.logger.InfoContext(ctx, string(event.Action), args...)
	return nil
}

// Producer publishes keyed records to a message broker.
type Producer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// KafkaSink serializes events as JSON records keyed by import.
type KafkaSink struct {
	producer Producer
}

func NewKafkaSink(producer Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := s.producer.Produce(ctx, []byte(event.Key()), value); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// MemorySink keeps events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of the recorded events in append order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
