package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telemetrykit/usage/internal/testutil"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:   endpoint,
		TrackingID: testutil.TestTrackingID,
		ClientID:   testutil.TestClientID,
		AppName:    testutil.TestAppName,
		AppVersion: testutil.TestAppVersion,
	}
}

func TestSendPostsHitWithIdentity(t *testing.T) {
	collect := testutil.NewCollectServer().Build()
	defer collect.Close()

	tr := New(testConfig(collect.URL()))
	defer tr.Close()

	err := tr.Send(context.Background(), map[string]string{
		"t":  "event",
		"ec": "build",
		"ea": "succeeded",
	})
	require.NoError(t, err)

	received := collect.Received()
	require.Len(t, received, 1)

	form := received[0]
	require.Equal(t, "1", form.Get(ParamProtocolVersion))
	require.Equal(t, testutil.TestTrackingID, form.Get(ParamTrackingID))
	require.Equal(t, testutil.TestClientID, form.Get(ParamClientID))
	require.Equal(t, testutil.TestAppName, form.Get(ParamApplicationName))
	require.Equal(t, testutil.TestAppVersion, form.Get(ParamApplicationVersion))
	require.Equal(t, "event", form.Get("t"))
	require.Equal(t, "build", form.Get("ec"))
	require.Equal(t, "succeeded", form.Get("ea"))
}

func TestSendRetriesServerErrors(t *testing.T) {
	collect := testutil.NewCollectServer().WithFailFirst(1).Build()
	defer collect.Close()

	tr := New(testConfig(collect.URL()))
	defer tr.Close()

	err := tr.Send(context.Background(), map[string]string{"t": "screenview", "cd": "home"})
	require.NoError(t, err, "one 500 should be retried away")
	require.Equal(t, 2, collect.RequestCount())
	require.Len(t, collect.Received(), 1)
}

func TestSendReportsClientErrors(t *testing.T) {
	collect := testutil.NewCollectServer().WithStatus(http.StatusNotFound).Build()
	defer collect.Close()

	tr := New(testConfig(collect.URL()))
	defer tr.Close()

	err := tr.Send(context.Background(), map[string]string{"t": "event"})
	require.Error(t, err)
	// 4xx responses other than 429 are not retried.
	require.Equal(t, 1, collect.RequestCount())
}

func TestSendRespectsContext(t *testing.T) {
	collect := testutil.NewCollectServer().Build()
	defer collect.Close()

	tr := New(testConfig(collect.URL()))
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tr.Send(ctx, map[string]string{"t": "event"})
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{AppName: "tool", AppVersion: "2.0"}
	cfg.setDefaults()

	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.UserAgent != "tool/2.0 (usage-go)" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
}

func TestCloseReleasesClient(t *testing.T) {
	tr := New(testConfig("http://127.0.0.1:0"))
	require.NoError(t, tr.Close())
}
