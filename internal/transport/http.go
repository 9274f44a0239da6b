// Package transport implements HTTP delivery of telemetry hits to a
// Measurement-protocol-style collection endpoint. One hit maps to one
// form-encoded POST request.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultEndpoint is the public collection endpoint used when no
	// override is configured.
	DefaultEndpoint = "https://www.google-analytics.com/collect"

	defaultTimeout = 30 * time.Second // Default timeout for HTTP requests

	// Retry configuration. Deliveries are best-effort, so the policy is
	// deliberately more modest than a data-plane client's would be.
	retryCount       = 2               // Number of retry attempts
	retryWaitTime    = 1 * time.Second // Initial wait time between retries
	retryMaxWaitTime = 5 * time.Second // Maximum wait time between retries

	// Connection pool configuration
	maxIdleConns        = 10               // Total idle connections
	maxIdleConnsPerHost = 4                // Idle connections to the collect host
	idleConnTimeout     = 90 * time.Second // Timeout for idle connections

	protocolVersion = "1"
)

// Protocol parameter names added by the transport to every request.
const (
	ParamProtocolVersion    = "v"
	ParamTrackingID         = "tid"
	ParamClientID           = "cid"
	ParamApplicationName    = "an"
	ParamApplicationVersion = "av"
)

// Config holds the settings for an HTTP hit transport.
type Config struct {
	// Endpoint is the collection URL. Empty selects DefaultEndpoint.
	Endpoint string

	// TrackingID identifies the property hits are attributed to.
	TrackingID string

	// ClientID is the persistent anonymous client identifier.
	ClientID string

	// AppName and AppVersion describe the host application.
	AppName    string
	AppVersion string

	// UserAgent overrides the request User-Agent. Empty derives one from
	// the application name and version.
	UserAgent string

	// Timeout bounds each delivery attempt. Zero selects the default.
	Timeout time.Duration
}

func (c *Config) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = fmt.Sprintf("%s/%s (usage-go)", c.AppName, c.AppVersion)
	}
}

// HTTP posts hits to the collection endpoint with retry on rate limiting
// and server errors. It is safe for concurrent use.
type HTTP struct {
	client *resty.Client
	cfg    Config
}

// New creates an HTTP transport for the given configuration.
//
// The underlying client is configured with:
//   - a bounded per-request timeout
//   - retry with backoff on network errors, 429, and 5xx responses
//   - a small idle connection pool sized for a single collect host
//   - TLS 1.2 minimum
func New(cfg Config) *HTTP {
	cfg.setDefaults()

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests ||
				r.StatusCode() >= 500
		})

	client.AddRetryAfterErrorCondition()

	httpClient := client.GetClient()
	httpClient.Transport = &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &HTTP{client: client, cfg: cfg}
}

// Send posts one hit's field map to the collection endpoint. The transport
// adds the protocol version, tracking ID, client ID, and application
// identity before posting.
//
// Returns an error if the request fails or the endpoint responds with a
// non-2xx status. Callers in the core treat either outcome as settled.
func (t *HTTP) Send(ctx context.Context, fields map[string]string) error {
	form := make(map[string]string, len(fields)+5)
	for k, v := range fields {
		form[k] = v
	}
	form[ParamProtocolVersion] = protocolVersion
	form[ParamTrackingID] = t.cfg.TrackingID
	form[ParamClientID] = t.cfg.ClientID
	form[ParamApplicationName] = t.cfg.AppName
	form[ParamApplicationVersion] = t.cfg.AppVersion

	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(t.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("hit delivery to %s failed: %w", t.cfg.Endpoint, err)
	}
	if resp.IsError() {
		return fmt.Errorf("hit delivery failed: endpoint=%s, status=%d (%s)",
			t.cfg.Endpoint, resp.StatusCode(), resp.Status())
	}
	return nil
}

// Close releases idle connections held by the transport.
func (t *HTTP) Close() error {
	if t.client != nil {
		t.client.GetClient().CloseIdleConnections()
	}
	return nil
}
