package usage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/telemetrykit/usage/internal/logging"
	"github.com/telemetrykit/usage/internal/props"
	"github.com/telemetrykit/usage/internal/transport"
)

// restTransport adapts the HTTP hit transport to the Transport interface.
type restTransport struct {
	h *transport.HTTP
}

func (r restTransport) Deliver(ctx context.Context, hit *Hit) error {
	return r.h.Send(ctx, hit.Fields())
}

func (r restTransport) Close() error {
	return r.h.Close()
}

// NewCommandLineSession builds a Session for a command-line host: hits go
// to the collection endpoint over HTTPS, and the client identifier plus the
// enablement decision persist in a per-application settings file under the
// user configuration directory.
//
// endpoint overrides the collection URL; empty selects the default public
// endpoint. If the settings file cannot be created or read, the session
// degrades to an ephemeral client identifier and session-only enablement.
func NewCommandLineSession(trackingID, appName, appVersion, endpoint string, opts ...SessionOption) (*Session, error) {
	clientID := ""

	store, err := props.Open(appName)
	if err != nil {
		logging.LogDebug(fmt.Sprintf("settings unavailable, using ephemeral identity: %v", err))
	} else {
		clientID = store.ClientID()
		opts = append([]SessionOption{WithPersistence(store)}, opts...)
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	h := transport.New(transport.Config{
		Endpoint:   endpoint,
		TrackingID: trackingID,
		ClientID:   clientID,
		AppName:    appName,
		AppVersion: appVersion,
	})

	return NewSession(trackingID, appName, appVersion, restTransport{h: h}, opts...)
}

// LogTransport logs hits instead of sending them. It backs dry-run modes
// and local debugging of instrumented applications.
type LogTransport struct{}

// Deliver logs the hit and reports success.
func (LogTransport) Deliver(_ context.Context, hit *Hit) error {
	logging.LogInfo(fmt.Sprintf("hit %s: %v", hit.Type(), hit.Fields()))
	return nil
}
