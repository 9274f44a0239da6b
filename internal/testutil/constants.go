// Package testutil provides shared testing utilities and constants for the
// usage client.
//
// It centralizes the common test identity values and a fluent builder for
// mock collection endpoints, so individual test files stay focused on the
// behavior under test.
//
// # Usage Examples
//
// Creating a mock collection endpoint:
//
//	collect := testutil.NewCollectServer().
//	    WithStatus(http.StatusOK).
//	    Build()
//	defer collect.Close()
//
//	// ... deliver hits against collect.URL() ...
//	payloads := collect.Received()
package testutil

// Shared identity values used across test files.
const (
	TestTrackingID = "UA-123456-1"
	TestAppName    = "usage-test"
	TestAppVersion = "0.0.1"
	TestClientID   = "00000000-0000-4000-8000-000000000000"
)
