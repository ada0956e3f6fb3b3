// Package telemetry provides a minimal, stdlib-only span abstraction. The
// orchestrator opens one span per decide call and logs it through
// internal/log when finished, without depending on a tracing SDK.
package telemetry

import "time"

// Span records the lifetime and attributes of one traced operation.
type Span struct {
	Name       string
	Attributes map[string]string
	StartedAt  time.Time
	Duration   time.Duration
	Err        error
}

// StartSpan begins a span with the given name and attributes.
func StartSpan(name string, attrs map[string]string) *Span {
	return &Span{Name: name, Attributes: attrs, StartedAt: time.Now()}
}

// End finalizes the span's duration and records err, if any.
func (s *Span) End(err error) {
	s.Duration = time.Since(s.StartedAt)
	s.Err = err
}
