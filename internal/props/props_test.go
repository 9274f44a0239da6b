package props

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestOpenPathFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings", "mytool.yaml")

	store, err := OpenPath(path)
	require.NoError(t, err)

	require.True(t, store.FirstRun(), "missing settings file means first run")
	require.NotEmpty(t, store.ClientID())
	_, err = uuid.Parse(store.ClientID())
	require.NoError(t, err, "client ID should be a valid UUID")

	// The file is written immediately so the next run is not a first run.
	require.FileExists(t, path)
}

func TestOpenPathSecondRunKeepsIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mytool.yaml")

	first, err := OpenPath(path)
	require.NoError(t, err)
	id := first.ClientID()

	second, err := OpenPath(path)
	require.NoError(t, err)
	require.False(t, second.FirstRun())
	require.Equal(t, id, second.ClientID(), "client ID must be stable across runs")
}

func TestEnablementRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mytool.yaml")

	store, err := OpenPath(path)
	require.NoError(t, err)

	_, stored := store.LoadEnabled()
	require.False(t, stored, "no preference stored yet")

	require.NoError(t, store.StoreEnabled(false))

	reopened, err := OpenPath(path)
	require.NoError(t, err)
	value, stored := reopened.LoadEnabled()
	require.True(t, stored)
	require.False(t, value)
}

func TestOpenPathBackfillsClientID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mytool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: true\n"), 0600))

	store, err := OpenPath(path)
	require.NoError(t, err)

	require.False(t, store.FirstRun(), "file existed, not a first run")
	require.NotEmpty(t, store.ClientID(), "hand-edited files get an identifier")

	value, stored := store.LoadEnabled()
	require.True(t, stored)
	require.True(t, value)
}

func TestOpenPathRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mytool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0600))

	_, err := OpenPath(path)
	require.Error(t, err)
}

func TestOpenRequiresAppName(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestDefaultPathIsPerApplication(t *testing.T) {
	a, err := DefaultPath("tool-a")
	require.NoError(t, err)
	b, err := DefaultPath("tool-b")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.Contains(t, a, "usage")
}
