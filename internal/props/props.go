// Package props persists per-application telemetry settings: the anonymous
// client identifier and the user's enablement decision. Settings live in a
// YAML file under the user configuration directory, one file per
// application name.
//
// Every failure mode degrades gracefully. A missing or unwritable file
// still yields a working store; the enablement setting then only lasts for
// the process lifetime and the client identifier is ephemeral.
package props

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/telemetrykit/usage/internal/logging"
	"github.com/telemetrykit/usage/internal/utils"
)

// settings is the on-disk document.
type settings struct {
	ClientID string `yaml:"clientId"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// Store is a file-backed settings store. It implements the persistence
// contract consumed by the session: first-run marker, enablement load and
// store. It is safe for concurrent use.
type Store struct {
	path     string
	firstRun bool

	mu  sync.Mutex
	doc settings
}

// DefaultPath returns the settings file location for an application:
// <user config dir>/usage/<appName>.yaml.
func DefaultPath(appName string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("no user config dir: %w", err)
	}
	return filepath.Join(dir, "usage", appName+".yaml"), nil
}

// Open loads or creates the settings store for the given application name.
func Open(appName string) (*Store, error) {
	if appName == "" {
		return nil, fmt.Errorf("props: application name is required")
	}
	path, err := DefaultPath(appName)
	if err != nil {
		return nil, err
	}
	return OpenPath(path)
}

// OpenPath loads or creates a settings store at an explicit path. A store
// whose file did not yet exist reports FirstRun true and is written out
// immediately so subsequent runs are not first runs.
func OpenPath(path string) (*Store, error) {
	s := &Store{path: path}

	if !utils.FileExists(path) {
		s.firstRun = true
		s.doc.ClientID = uuid.NewString()
		s.flush()
		return s, nil
	}

	if err := utils.ReadYAML(&s.doc, path); err != nil {
		return nil, err
	}
	if s.doc.ClientID == "" {
		// Older or hand-edited files may lack an identifier.
		s.doc.ClientID = uuid.NewString()
		s.flush()
	}
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// FirstRun reports whether the settings file was created by this process.
func (s *Store) FirstRun() bool { return s.firstRun }

// ClientID returns the anonymous client identifier.
func (s *Store) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.ClientID
}

// LoadEnabled returns the stored enablement preference. The second return
// is false when the user never expressed one.
func (s *Store) LoadEnabled() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Enabled == nil {
		return false, false
	}
	return *s.doc.Enabled, true
}

// StoreEnabled persists the enablement preference.
func (s *Store) StoreEnabled(value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := value
	s.doc.Enabled = &v
	return utils.WriteYAML(&s.doc, s.path)
}

// flush writes the document best-effort; failures are logged at debug level
// and otherwise ignored.
func (s *Store) flush() {
	if err := utils.WriteYAML(&s.doc, s.path); err != nil {
		logging.LogDebug(fmt.Sprintf("settings write failed: %v", err))
	}
}
