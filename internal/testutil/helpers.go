package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// CollectServerBuilder provides a fluent interface for creating mock
// collection endpoints. The built server records every form-encoded hit it
// receives, in arrival order.
//
// Example usage:
//
//	collect := testutil.NewCollectServer().
//	    WithFailFirst(2).
//	    Build()
//	defer collect.Close()
type CollectServerBuilder struct {
	status    int
	failFirst int
}

// NewCollectServer creates a new CollectServerBuilder responding 200 OK.
func NewCollectServer() *CollectServerBuilder {
	return &CollectServerBuilder{status: http.StatusOK}
}

// WithStatus sets the HTTP status returned for every request.
func (b *CollectServerBuilder) WithStatus(status int) *CollectServerBuilder {
	b.status = status
	return b
}

// WithFailFirst makes the server answer 500 to the first n requests and the
// configured status afterwards. Useful for exercising retry policies.
func (b *CollectServerBuilder) WithFailFirst(n int) *CollectServerBuilder {
	b.failFirst = n
	return b
}

// Build creates and starts the configured mock endpoint.
func (b *CollectServerBuilder) Build() *CollectServer {
	cs := &CollectServer{status: b.status, failFirst: b.failFirst}
	cs.server = httptest.NewServer(http.HandlerFunc(cs.handle))
	return cs
}

// CollectServer is a mock collection endpoint recording received hits.
type CollectServer struct {
	server    *httptest.Server
	status    int
	failFirst int

	mu       sync.Mutex
	requests int
	received []url.Values
}

func (cs *CollectServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	cs.mu.Lock()
	cs.requests++
	fail := cs.requests <= cs.failFirst
	if !fail {
		cs.received = append(cs.received, r.PostForm)
	}
	cs.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(cs.status)
}

// URL returns the endpoint URL to point a transport at.
func (cs *CollectServer) URL() string { return cs.server.URL }

// Close shuts the mock endpoint down.
func (cs *CollectServer) Close() { cs.server.Close() }

// Received returns the recorded hit payloads in arrival order.
func (cs *CollectServer) Received() []url.Values {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]url.Values, len(cs.received))
	copy(out, cs.received)
	return out
}

// RequestCount returns the total number of requests seen, including the
// ones deliberately failed.
func (cs *CollectServer) RequestCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.requests
}
