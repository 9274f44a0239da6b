package usage

import (
	"context"
	"sync"
	"time"
)

// Timer measures elapsed wall-clock time for a named operation and reports
// it as a single timing hit when finished. Create one with
// Session.StartTimer; a timer that is never finished never sends.
type Timer struct {
	session      *Session
	variableName string
	category     string
	hasCategory  bool
	label        string
	hasLabel     bool

	mu    sync.Mutex
	start time.Time
	end   time.Time // zero while running
}

// StartTimer returns a running Timer bound to this session. Category and
// label are optional (WithCategory, WithLabel). Starting a timer does not
// send anything.
func (s *Session) StartTimer(variableName string, opts ...HitOption) *Timer {
	p := applyHitOptions(opts)
	return &Timer{
		session:      s,
		variableName: variableName,
		category:     p.category,
		hasCategory:  p.hasCategory,
		label:        p.label,
		hasLabel:     p.hasLabel,
		start:        time.Now(),
	}
}

// CurrentElapsed returns the time elapsed since the timer started. While
// running it grows monotonically; after Finish it is frozen at the final
// measurement.
func (t *Timer) CurrentElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.end.IsZero() {
		return time.Since(t.start)
	}
	return t.end.Sub(t.start)
}

// Finish stops the timer and reports the elapsed duration via
// Session.SendTiming, subject to the same enablement gating and
// failure-swallowing as any other send. Finish is idempotent: the second
// and later calls are no-ops and do not resend.
func (t *Timer) Finish(ctx context.Context) error {
	t.mu.Lock()
	if !t.end.IsZero() {
		t.mu.Unlock()
		return nil
	}
	t.end = time.Now()
	elapsed := t.end.Sub(t.start)
	t.mu.Unlock()

	var opts []HitOption
	if t.hasCategory {
		opts = append(opts, WithCategory(t.category))
	}
	if t.hasLabel {
		opts = append(opts, WithLabel(t.label))
	}
	return t.session.SendTiming(ctx, t.variableName, elapsed, opts...)
}
