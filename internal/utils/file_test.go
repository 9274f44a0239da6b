package utils

import (
	"os"
	"path/filepath"
	"testing"
)

type testSettings struct {
	ClientID string `yaml:"clientId"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "existing.txt")
	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{
			name:     "existing file returns true",
			filename: existingFile,
			expected: true,
		},
		{
			name:     "non-existing file returns false",
			filename: filepath.Join(tmpDir, "nonexistent.txt"),
			expected: false,
		},
		{
			name:     "directory returns true",
			filename: tmpDir,
			expected: true,
		},
		{
			name:     "empty path returns false",
			filename: "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FileExists(tt.filename)
			if result != tt.expected {
				t.Errorf("FileExists(%q) = %v, want %v", tt.filename, result, tt.expected)
			}
		})
	}
}

func TestReadYAML(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		fileContent string
		fileName    string
		expectError bool
		validate    func(*testing.T, *testSettings)
	}{
		{
			name:        "valid settings file",
			fileContent: "clientId: \"00000000-0000-4000-8000-000000000000\"\nenabled: true\n",
			fileName:    "valid.yaml",
			expectError: false,
			validate: func(t *testing.T, s *testSettings) {
				if s.ClientID != "00000000-0000-4000-8000-000000000000" {
					t.Errorf("Unexpected clientId: %q", s.ClientID)
				}
				if s.Enabled == nil || !*s.Enabled {
					t.Error("Expected enabled to be true")
				}
			},
		},
		{
			name:        "optional field omitted",
			fileContent: "clientId: \"abc\"\n",
			fileName:    "partial.yaml",
			expectError: false,
			validate: func(t *testing.T, s *testSettings) {
				if s.Enabled != nil {
					t.Error("Expected enabled to stay unset")
				}
			},
		},
		{
			name:        "invalid YAML syntax",
			fileContent: "invalid: yaml: content: [unclosed",
			fileName:    "invalid.yaml",
			expectError: true,
		},
		{
			name:        "empty file",
			fileContent: "",
			fileName:    "empty.yaml",
			expectError: true, // Empty YAML file causes EOF error
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := filepath.Join(tmpDir, tt.fileName)
			if err := os.WriteFile(filePath, []byte(tt.fileContent), 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			var s testSettings
			err := ReadYAML(&s, filePath)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if tt.validate != nil {
					tt.validate(t, &s)
				}
			}
		})
	}
}

func TestReadYAMLNonExistentFile(t *testing.T) {
	var s testSettings
	err := ReadYAML(&s, "/nonexistent/path/settings.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.yaml")

	enabled := false
	in := testSettings{ClientID: "abc", Enabled: &enabled}
	if err := WriteYAML(in, path); err != nil {
		t.Fatalf("WriteYAML() unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Written file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("File mode = %o, want 0600", perm)
	}

	var out testSettings
	if err := ReadYAML(&out, path); err != nil {
		t.Fatalf("ReadYAML() unexpected error: %v", err)
	}
	if out.ClientID != in.ClientID {
		t.Errorf("ClientID = %q, want %q", out.ClientID, in.ClientID)
	}
	if out.Enabled == nil || *out.Enabled {
		t.Error("Expected enabled to round-trip as false")
	}
}

func TestWriteYAMLOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	if err := WriteYAML(testSettings{ClientID: "first"}, path); err != nil {
		t.Fatalf("WriteYAML() unexpected error: %v", err)
	}
	if err := WriteYAML(testSettings{ClientID: "second"}, path); err != nil {
		t.Fatalf("WriteYAML() unexpected error: %v", err)
	}

	var out testSettings
	if err := ReadYAML(&out, path); err != nil {
		t.Fatalf("ReadYAML() unexpected error: %v", err)
	}
	if out.ClientID != "second" {
		t.Errorf("ClientID = %q, want %q", out.ClientID, "second")
	}
}
