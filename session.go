package usage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/telemetrykit/usage/internal/logging"
	"github.com/telemetrykit/usage/internal/metrics"
	"github.com/telemetrykit/usage/internal/telemetry"
)

const (
	// MaxExceptionDescriptionLength is the hard limit the collection
	// endpoint places on exception descriptions. SendException truncates
	// longer input before transmission.
	MaxExceptionDescriptionLength = 100

	// defaultCloseDrain bounds how long Close waits for outstanding pings.
	defaultCloseDrain = 500 * time.Millisecond
)

// Transport delivers a fully formed Hit to the collection endpoint. A
// delivery may fail; the Session treats success and failure the same for
// drain-counting purposes and never inspects failure details.
type Transport interface {
	Deliver(ctx context.Context, hit *Hit) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, hit *Hit) error

// Deliver calls f.
func (f TransportFunc) Deliver(ctx context.Context, hit *Hit) error {
	return f(ctx, hit)
}

// Persistence stores the user's enablement decision across process restarts
// and reports whether this is the first run of the host application.
//
// A Session tolerates a nil or failing Persistence: enablement then lives
// only for the life of the process and FirstRun reports false.
type Persistence interface {
	// FirstRun reports whether the host application is running for the
	// first time, decided at settings-load time.
	FirstRun() bool

	// LoadEnabled returns the persisted enablement preference. The second
	// return is false when no preference has been stored.
	LoadEnabled() (value bool, ok bool)

	// StoreEnabled persists the enablement preference.
	StoreEnabled(value bool) error
}

// subscriber is one OnSend listener; kept in registration order so
// notification order is deterministic.
type subscriber struct {
	id int
	fn func(fields map[string]string)
}

// Session is the telemetry client. It gates every send on the current
// enablement state, snapshots hits together with the session-variable map,
// hands them to the Transport on background goroutines, and tracks in-flight
// deliveries so WaitForLastPing can drain them.
//
// All methods are safe for concurrent use.
type Session struct {
	trackingID string
	appName    string
	appVersion string

	transport Transport
	persist   Persistence
	pipeline  *metrics.Pipeline
	tracer    trace.Tracer

	mu       sync.Mutex
	optMode  OptMode
	userPref *bool // nil until the user expressed a preference
	firstRun bool
	vars     map[string]Value
	subs     []subscriber
	nextSub  int
	inflight int
	drained  chan struct{} // non-nil while a drain waiter exists
}

// SessionOption configures optional Session settings.
type SessionOption func(*Session)

// WithOptMode selects the enablement default policy. The default is OptOut:
// telemetry is on unless the user disabled it.
func WithOptMode(mode OptMode) SessionOption {
	return func(s *Session) { s.optMode = mode }
}

// WithPersistence injects the collaborator that persists the enablement
// flag and supplies the first-run marker.
func WithPersistence(p Persistence) SessionOption {
	return func(s *Session) { s.persist = p }
}

// WithTracerProvider enables a client span around each transport delivery.
// Without it, tracing operations use a noop provider.
func WithTracerProvider(tp trace.TracerProvider) SessionOption {
	return func(s *Session) {
		if tp != nil {
			s.tracer = tp.Tracer("usage/session")
		}
	}
}

// WithMetrics registers pipeline self-metrics (hits sent, failed, and
// suppressed by policy) with the given registerer.
func WithMetrics(reg prometheus.Registerer) SessionOption {
	return func(s *Session) { s.pipeline = metrics.NewPipeline(reg) }
}

// NewSession creates a Session with an explicitly injected Transport.
// Most hosts use a platform factory such as NewCommandLineSession instead.
//
// Returns an error if the tracking ID, application name, application
// version, or transport is missing.
func NewSession(trackingID, appName, appVersion string, transport Transport, opts ...SessionOption) (*Session, error) {
	if trackingID == "" {
		return nil, missingField("trackingID")
	}
	if appName == "" {
		return nil, missingField("appName")
	}
	if appVersion == "" {
		return nil, missingField("appVersion")
	}
	if transport == nil {
		return nil, fmt.Errorf("usage: transport is required")
	}

	s := &Session{
		trackingID: trackingID,
		appName:    appName,
		appVersion: appVersion,
		transport:  transport,
		tracer:     noop.NewTracerProvider().Tracer("usage/session"),
		vars:       make(map[string]Value),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persist != nil {
		s.firstRun = s.persist.FirstRun()
		if v, ok := s.persist.LoadEnabled(); ok {
			s.userPref = &v
		}
	}

	return s, nil
}

// TrackingID returns the tracking identifier the session was created with.
func (s *Session) TrackingID() string { return s.trackingID }

// ApplicationName returns the host application name.
func (s *Session) ApplicationName() string { return s.appName }

// ApplicationVersion returns the host application version.
func (s *Session) ApplicationVersion() string { return s.appVersion }

// FirstRun reports whether the persistence collaborator decided this is the
// first run of the host application. Without persistence it reports false.
func (s *Session) FirstRun() bool { return s.firstRun }

// Enabled reports whether sends are currently allowed. The value is derived
// on every call: in OptOut mode telemetry is on unless the user disabled it,
// in OptIn mode it is off until the user enabled it.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabledLocked()
}

func (s *Session) enabledLocked() bool {
	if s.userPref == nil {
		return s.optMode == OptOut
	}
	return *s.userPref
}

// SetEnabled records the user's enablement decision and persists it
// best-effort. A persistence failure degrades to a session-only setting.
func (s *Session) SetEnabled(value bool) {
	s.mu.Lock()
	v := value
	s.userPref = &v
	s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.StoreEnabled(value); err != nil {
			logging.LogDebug(fmt.Sprintf("failed to persist enabled=%v: %v", value, err))
		}
	}
}

// SessionValue returns the session variable with the given name, or the
// absent Value if it was never set.
func (s *Session) SessionValue(name string) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars[name]
}

// SetSessionValue sets a session variable echoed on every subsequent hit
// until overwritten or the session is destroyed. Setting Absent removes the
// variable. Session variables do not survive process restarts.
func (s *Session) SetSessionValue(name string, value Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value.IsAbsent() {
		delete(s.vars, name)
		return
	}
	s.vars[name] = value
}

// OnSend registers a listener for the field map of every hit handed to the
// transport. Listeners are invoked synchronously inside the send call, in
// call order, at handoff time (delivery itself may still fail afterwards).
// Suppressed sends never notify.
//
// The returned function removes the listener.
func (s *Session) OnSend(fn func(fields map[string]string)) (remove func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// hitParams carries the optional fields of a send call.
type hitParams struct {
	category    string
	hasCategory bool
	label       string
	hasLabel    bool
	value       int64
	hasValue    bool
}

// HitOption sets an optional field on a send call.
type HitOption func(*hitParams)

// WithCategory sets the category of a timing hit.
func WithCategory(category string) HitOption {
	return func(p *hitParams) { p.category = category; p.hasCategory = true }
}

// WithLabel sets the label of an event or timing hit.
func WithLabel(label string) HitOption {
	return func(p *hitParams) { p.label = label; p.hasLabel = true }
}

// WithValue sets the value of an event hit. Values must be non-negative.
func WithValue(value int64) HitOption {
	return func(p *hitParams) { p.value = value; p.hasValue = true }
}

func applyHitOptions(opts []HitOption) hitParams {
	var p hitParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// SendScreenView reports that a screen or page was viewed.
func (s *Session) SendScreenView(ctx context.Context, viewName string) error {
	if viewName == "" {
		return missingField("viewName")
	}
	return s.send(ctx, HitScreenView, map[string]string{ParamScreenName: viewName})
}

// SendEvent reports a custom event. Category and action are required; label
// and value are optional (WithLabel, WithValue). A negative value is a
// contract violation and is rejected, not clamped.
func (s *Session) SendEvent(ctx context.Context, category, action string, opts ...HitOption) error {
	if category == "" {
		return missingField("category")
	}
	if action == "" {
		return missingField("action")
	}
	p := applyHitOptions(opts)
	if p.hasValue && p.value < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeEventValue, p.value)
	}

	fields := map[string]string{
		ParamEventCategory: category,
		ParamEventAction:   action,
	}
	if p.hasLabel {
		fields[ParamEventLabel] = p.label
	}
	if p.hasValue {
		fields[ParamEventValue] = fmt.Sprintf("%d", p.value)
	}
	return s.send(ctx, HitEvent, fields)
}

// SendSocial reports a social interaction.
func (s *Session) SendSocial(ctx context.Context, network, action, target string) error {
	if network == "" {
		return missingField("network")
	}
	if action == "" {
		return missingField("action")
	}
	if target == "" {
		return missingField("target")
	}
	return s.send(ctx, HitSocial, map[string]string{
		ParamSocialNetwork: network,
		ParamSocialAction:  action,
		ParamSocialTarget:  target,
	})
}

// SendTiming reports an elapsed-time measurement. Category and label are
// optional (WithCategory, WithLabel).
func (s *Session) SendTiming(ctx context.Context, variableName string, duration time.Duration, opts ...HitOption) error {
	if variableName == "" {
		return missingField("variableName")
	}
	p := applyHitOptions(opts)

	fields := map[string]string{
		ParamTimingVariable: variableName,
		ParamTimingTime:     fmt.Sprintf("%d", duration.Milliseconds()),
	}
	if p.hasCategory {
		fields[ParamTimingCategory] = p.category
	}
	if p.hasLabel {
		fields[ParamTimingLabel] = p.label
	}
	return s.send(ctx, HitTiming, fields)
}

// SendException reports an exception or crash. The description must not be
// derived from raw exception messages (they can carry user data); use
// SanitizeStacktrace first. Descriptions longer than
// MaxExceptionDescriptionLength characters are truncated.
func (s *Session) SendException(ctx context.Context, description string, fatal bool) error {
	if description == "" {
		return missingField("description")
	}
	fields := map[string]string{
		ParamExceptionDesc:  truncate(description, MaxExceptionDescriptionLength),
		ParamExceptionFatal: boolField(fatal),
	}
	return s.send(ctx, HitException, fields)
}

// send gates on enablement, snapshots the hit, notifies listeners, and
// schedules the background delivery. It returns once the handoff has been
// scheduled, never once the network call completes.
func (s *Session) send(ctx context.Context, t HitType, fields map[string]string) error {
	s.mu.Lock()
	if !s.enabledLocked() {
		s.mu.Unlock()
		if s.pipeline != nil {
			s.pipeline.Suppressed(string(t))
		}
		return nil
	}
	hit := newHit(t, fields, s.vars)
	s.inflight++
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(hit.Fields())
	}

	// The delivery outlives the caller's context: in-flight sends are never
	// cancelled, only abandoned by WaitForLastPing's timeout.
	dctx := context.WithoutCancel(ctx)
	go s.deliver(dctx, hit)
	return nil
}

func (s *Session) deliver(ctx context.Context, hit *Hit) {
	defer s.settle()

	ctx, span := s.tracer.Start(ctx, "usage.deliver", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrHitType, string(hit.Type())))

	if err := s.transport.Deliver(ctx, hit); err != nil {
		// Swallowed: telemetry failures must never reach the host.
		logging.LogDebug(fmt.Sprintf("hit dropped: %v", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if s.pipeline != nil {
			s.pipeline.Failed(string(hit.Type()))
		}
		return
	}
	span.SetStatus(codes.Ok, "delivered")
	if s.pipeline != nil {
		s.pipeline.Sent(string(hit.Type()))
	}
}

func (s *Session) settle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 && s.drained != nil {
		close(s.drained)
		s.drained = nil
	}
}

// WaitForLastPing blocks until every hit currently in flight has settled
// (delivered or failed) or until timeout elapses, whichever is first.
//
// A zero timeout returns immediately; a negative timeout waits indefinitely.
// The call never fails: the timeout only bounds how long the caller waits,
// it does not cancel outstanding deliveries, which may still complete in the
// background after this call returns.
func (s *Session) WaitForLastPing(timeout time.Duration) {
	if timeout == 0 {
		return
	}

	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return
	}
	if s.drained == nil {
		s.drained = make(chan struct{})
	}
	ch := s.drained
	s.mu.Unlock()

	if timeout < 0 {
		<-ch
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
}

// Close drains outstanding pings for a bounded time and releases transport
// resources when the transport supports it.
func (s *Session) Close() error {
	s.WaitForLastPing(defaultCloseDrain)
	if c, ok := s.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
