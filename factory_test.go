package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telemetrykit/usage/internal/testutil"
	"github.com/telemetrykit/usage/internal/transport"
)

func TestEndToEndEventDelivery(t *testing.T) {
	collect := testutil.NewCollectServer().Build()
	defer collect.Close()

	h := transport.New(transport.Config{
		Endpoint:   collect.URL(),
		TrackingID: testutil.TestTrackingID,
		ClientID:   testutil.TestClientID,
		AppName:    testutil.TestAppName,
		AppVersion: testutil.TestAppVersion,
	})
	defer h.Close()

	deliver := TransportFunc(func(ctx context.Context, hit *Hit) error {
		return h.Send(ctx, hit.Fields())
	})

	s, err := NewSession(testutil.TestTrackingID, testutil.TestAppName, testutil.TestAppVersion, deliver)
	require.NoError(t, err)

	s.SetSessionValue("cd1", StringValue("stable"))
	require.NoError(t, s.SendEvent(context.Background(), "build", "succeeded", WithLabel("release")))
	s.WaitForLastPing(5 * time.Second)

	received := collect.Received()
	require.Len(t, received, 1)

	form := received[0]
	require.Equal(t, "1", form.Get("v"))
	require.Equal(t, testutil.TestTrackingID, form.Get("tid"))
	require.Equal(t, testutil.TestClientID, form.Get("cid"))
	require.Equal(t, testutil.TestAppName, form.Get("an"))
	require.Equal(t, testutil.TestAppVersion, form.Get("av"))
	require.Equal(t, "event", form.Get("t"))
	require.Equal(t, "build", form.Get("ec"))
	require.Equal(t, "succeeded", form.Get("ea"))
	require.Equal(t, "release", form.Get("el"))
	require.Equal(t, "stable", form.Get("cd1"))
}

func TestNewCommandLineSession(t *testing.T) {
	// Settings resolve under the user configuration directory; point it at a
	// scratch directory so the test never touches real user state.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	collect := testutil.NewCollectServer().Build()
	defer collect.Close()

	s, err := NewCommandLineSession(testutil.TestTrackingID, testutil.TestAppName,
		testutil.TestAppVersion, collect.URL())
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.FirstRun(), "fresh configuration directory means first run")
	require.True(t, s.Enabled(), "opt-out default enables telemetry")

	require.NoError(t, s.SendScreenView(context.Background(), "home"))
	s.WaitForLastPing(5 * time.Second)

	received := collect.Received()
	require.Len(t, received, 1)
	require.Equal(t, "screenview", received[0].Get("t"))
	require.Equal(t, "home", received[0].Get("cd"))
	require.NotEmpty(t, received[0].Get("cid"), "persistent client identifier attached")
}

func TestNewCommandLineSessionReusesIdentity(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	collect := testutil.NewCollectServer().Build()
	defer collect.Close()

	first, err := NewCommandLineSession(testutil.TestTrackingID, testutil.TestAppName,
		testutil.TestAppVersion, collect.URL())
	require.NoError(t, err)
	require.NoError(t, first.SendScreenView(context.Background(), "one"))
	first.WaitForLastPing(5 * time.Second)
	require.NoError(t, first.Close())

	second, err := NewCommandLineSession(testutil.TestTrackingID, testutil.TestAppName,
		testutil.TestAppVersion, collect.URL())
	require.NoError(t, err)
	require.False(t, second.FirstRun())
	require.NoError(t, second.SendScreenView(context.Background(), "two"))
	second.WaitForLastPing(5 * time.Second)
	require.NoError(t, second.Close())

	received := collect.Received()
	require.Len(t, received, 2)
	require.Equal(t, received[0].Get("cid"), received[1].Get("cid"),
		"client identifier survives across sessions")
}

func TestLogTransportDeliversSilently(t *testing.T) {
	s, err := NewSession(testutil.TestTrackingID, testutil.TestAppName,
		testutil.TestAppVersion, LogTransport{})
	require.NoError(t, err)

	require.NoError(t, s.SendEvent(context.Background(), "cat", "act"))
	s.WaitForLastPing(-1)
	require.NoError(t, s.Close())
}
