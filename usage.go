// Package usage is a best-effort telemetry client: it formats usage hits
// (screen views, custom events, social interactions, timings, exceptions)
// and dispatches them asynchronously to a collection endpoint.
//
// The package is built around one promise: telemetry never blocks and never
// breaks the host application. Sends are fire-and-forget, transport failures
// are swallowed, and an opt-in/opt-out gate is evaluated on every send.
//
// # Key Components
//
// Session: owns enablement state, session-scoped variables, the outbound
// hit stream, and the in-flight bookkeeping used by WaitForLastPing.
//
// Timer: measures elapsed wall-clock time and reports a single timing hit
// when finished.
//
// Sanitizer: scrubs local filesystem paths out of stacktrace text before it
// is attached to an exception hit.
//
// # Usage Example
//
//	session, err := usage.NewCommandLineSession("UA-0000-1", "mytool", "1.2.0", "")
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
//	_ = session.SendScreenView(ctx, "home")
//	_ = session.SendEvent(ctx, "build", "succeeded", usage.WithValue(3))
//
//	// Bound how long a short-lived process waits for outstanding pings.
//	session.WaitForLastPing(500 * time.Millisecond)
//
// # Design Patterns
//
// Graceful Degradation: if the settings file cannot be read or written the
// session still works, with enablement scoped to the process lifetime and an
// ephemeral client identifier.
//
// Swallowed Transport Errors: a send method's error return only ever reports
// a caller contract violation (for example a negative event value). Network
// failures are logged at debug level and dropped.
package usage

import "strconv"

// HitType identifies the kind of telemetry hit being sent.
type HitType string

// Hit types supported by the client.
const (
	HitScreenView HitType = "screenview"
	HitEvent      HitType = "event"
	HitSocial     HitType = "social"
	HitTiming     HitType = "timing"
	HitException  HitType = "exception"
)

// Wire parameter names carried by hits. The transport collaborator decides
// the final encoding; these are the keys of the Hit field map.
const (
	ParamHitType        = "t"
	ParamScreenName     = "cd"
	ParamEventCategory  = "ec"
	ParamEventAction    = "ea"
	ParamEventLabel     = "el"
	ParamEventValue     = "ev"
	ParamSocialNetwork  = "sn"
	ParamSocialAction   = "sa"
	ParamSocialTarget   = "st"
	ParamTimingVariable = "utv"
	ParamTimingTime     = "utt"
	ParamTimingCategory = "utc"
	ParamTimingLabel    = "utl"
	ParamExceptionDesc  = "exd"
	ParamExceptionFatal = "exf"
)

// OptMode selects how the enablement default is derived when the user has
// not expressed a preference.
type OptMode int

const (
	// OptOut means telemetry is on unless the user disabled it. This is the
	// default mode.
	OptOut OptMode = iota

	// OptIn means telemetry is off until the user enabled it.
	OptIn
)

// String returns the mode name for logging and configuration.
func (m OptMode) String() string {
	if m == OptIn {
		return "opt-in"
	}
	return "opt-out"
}

// ValueKind discriminates the closed set of session-variable value types.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueString
	ValueInt
	ValueFloat
	ValueBool
)

// Value is a session-variable value: absent, string, integer, float, or
// boolean. The zero Value is absent. Using a closed sum type keeps the wire
// encoding of session variables well-defined.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

// Absent returns the absent Value. Setting a session variable to Absent
// removes it.
func Absent() Value { return Value{} }

// StringValue wraps a string session-variable value.
func StringValue(s string) Value { return Value{kind: ValueString, s: s} }

// IntValue wraps an integer session-variable value.
func IntValue(i int64) Value { return Value{kind: ValueInt, i: i} }

// FloatValue wraps a floating-point session-variable value.
func FloatValue(f float64) Value { return Value{kind: ValueFloat, f: f} }

// BoolValue wraps a boolean session-variable value.
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }

// Kind reports which member of the sum the value holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsAbsent reports whether the value is absent.
func (v Value) IsAbsent() bool { return v.kind == ValueAbsent }

// Encode renders the value in its wire form. Absent values encode as the
// empty string; callers skip absent values before encoding.
func (v Value) Encode() string {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Hit is an immutable snapshot of a single outbound telemetry request:
// the hit type plus the type-specific fields, with the session-variable
// map merged in at build time. Hits are either delivered or dropped; the
// core never mutates or retries them.
type Hit struct {
	hitType HitType
	fields  map[string]string
}

func newHit(t HitType, fields map[string]string, vars map[string]Value) *Hit {
	merged := make(map[string]string, len(fields)+len(vars)+1)
	for k, v := range vars {
		if !v.IsAbsent() {
			merged[k] = v.Encode()
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	merged[ParamHitType] = string(t)
	return &Hit{hitType: t, fields: merged}
}

// Type returns the hit type.
func (h *Hit) Type() HitType { return h.hitType }

// Fields returns a copy of the hit's field map. The copy keeps the hit
// immutable even if the caller mutates the returned map.
func (h *Hit) Fields() map[string]string {
	out := make(map[string]string, len(h.fields))
	for k, v := range h.fields {
		out[k] = v
	}
	return out
}
