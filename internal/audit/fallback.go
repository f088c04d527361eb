package audit

import (
	"context"
	"log/slog"

	"census/pkg/platform/circuit"
)

// FallbackSink sends events to primary while it is healthy and to fallback
// otherwise. An event that primary fails to accept is appended to fallback,
// so a broker outage degrades audit delivery instead of losing events.
type FallbackSink struct {
	primary  Sink
	fallback Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackSink(primary, fallback Sink, breaker *circuit.Breaker, logger *slog.Logger) *FallbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSink{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackSink) Append(ctx context.Context, event Event) error {
	if s.breaker.Allow() {
		err := s.primary.Append(ctx, event)
		if err == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.logger.InfoContext(ctx, "audit sink recovered", "sink", s.breaker.Name())
			}
			return nil
		}
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "audit sink failing, using fallback",
				"sink", s.breaker.Name(),
				"error", err,
			)
		}
	}
	return s.fallback.Append(ctx, event)
}
