// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid rtsp", "rtsp://camera.local/stream1", []string{"rtsp"}, false},
		{"empty url", "", []string{"rtsp"}, true},
		{"no host", "rtsp://", []string{"rtsp"}, true},
		{"invalid scheme", "http://camera.local/stream1", []string{"rtsp"}, true},
		{"no scheme", "camera.local/stream1", []string{"rtsp"}, true},
		{"with port", "rtsp://camera.local:554/stream1", []string{"rtsp"}, false},
		{"with path", "rtsp://camera.local/live/ch0", []string{"rtsp"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Port(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"valid port 80", 80, false},
		{"valid port 8080", 8080, false},
		{"valid port 65535", 65535, false},
		{"valid port 1", 1, false},
		{"invalid port 0", 0, true},
		{"invalid port -1", -1, true},
		{"invalid port 65536", 65536, true},
		{"invalid port 100000", 100000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Port("testPort", tt.port)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Range(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		min     int
		max     int
		wantErr bool
	}{
		{"in range", 5, 1, 10, false},
		{"at min", 1, 1, 10, false},
		{"at max", 10, 1, 10, false},
		{"below min", 0, 1, 10, true},
		{"above max", 11, 1, 10, true},
		{"negative range", -5, -10, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Range("testValue", tt.value, tt.min, tt.max)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Directory(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentDir := filepath.Join(tmpDir, "nonexistent")

	tests := []struct {
		name      string
		path      string
		mustExist bool
		wantErr   bool
	}{
		{"existing dir", tmpDir, true, false},
		{"existing dir no mustExist", tmpDir, false, false},
		{"nonexistent mustExist", nonExistentDir, true, true},
		{"nonexistent create", filepath.Join(tmpDir, "autocreate"), false, false},
		{"empty path", "", false, true},
		{"path traversal", "../etc", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Directory("testDir", tt.path, tt.mustExist)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_NotEmpty(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"non-empty", "hello", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"tab only", "\t", true},
		{"newline only", "\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.NotEmpty("testField", tt.value)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_OneOf(t *testing.T) {
	allowed := []string{"mp4", "mkv", "ts"}

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid mp4", "mp4", false},
		{"valid mkv", "mkv", false},
		{"valid ts", "ts", false},
		{"invalid avi", "avi", true},
		{"invalid empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.OneOf("testField", tt.value, allowed)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_Positive(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"positive 1", 1, false},
		{"positive 100", 100, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Positive("testField", tt.value)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_NonNegative(t *testing.T) {
	tests := []struct {
		name    string
		value   int
		wantErr bool
	}{
		{"positive 1", 1, false},
		{"zero", 0, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.NonNegative("testField", tt.value)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_MultipleErrors(t *testing.T) {
	v := New()

	v.Port("port", 0)                  // Invalid
	v.URL("url", "", []string{"rtsp"}) // Invalid
	v.NotEmpty("name", "")             // Invalid

	if v.IsValid() {
		t.Fatal("expected errors, got none")
	}

	errs := v.Errors()
	if len(errs) != 3 {
		t.Errorf("expected 3 errors, got %d", len(errs))
	}

	err := v.Err()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "port") {
		t.Error("error message should mention 'port'")
	}
	if !strings.Contains(errorMsg, "url") {
		t.Error("error message should mention 'url'")
	}
	if !strings.Contains(errorMsg, "name") {
		t.Error("error message should mention 'name'")
	}
}

func TestValidator_Chaining(t *testing.T) {
	v := New()

	// Chain multiple validations
	v.URL("rtspUrl", "rtsp://camera.local/stream1", []string{"rtsp"})
	v.Port("port", 554)
	v.Range("days", 7, 1, 14)
	v.NotEmpty("name", "Front Door")

	if !v.IsValid() {
		t.Errorf("unexpected errors: %v", v.Err())
	}
}

func TestValidator_DirectoryCreation(t *testing.T) {
	tmpDir := t.TempDir()
	newDir := filepath.Join(tmpDir, "auto", "create", "nested")

	v := New()
	v.Directory("testDir", newDir, false)

	if !v.IsValid() {
		t.Errorf("unexpected error: %v", v.Err())
	}

	// Check that directory was actually created
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("directory was not created")
	}
}

// Security regression tests for path traversal protection
func TestValidatePath_Security(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		shouldErr bool
		errMsg    string
	}{
		{
			name:      "valid relative path",
			path:      "recording.mp4",
			shouldErr: false,
		},
		{
			name:      "valid subdirectory",
			path:      "output/recording.mp4",
			shouldErr: false,
		},
		{
			name:      "empty path allowed",
			path:      "",
			shouldErr: false,
		},
		{
			name:      "absolute path",
			path:      "/etc/passwd",
			shouldErr: true,
			errMsg:    "must be relative",
		},
		{
			name:      "traversal with dotdot",
			path:      "../../../etc/passwd",
			shouldErr: true,
			errMsg:    "traversal",
		},
		{
			name:      "traversal encoded",
			path:      "..%2F..%2Fetc%2Fpasswd",
			shouldErr: true,
			errMsg:    "traversal",
		},
		{
			name:      "windows-style traversal",
			path:      "..\\..\\windows\\system32",
			shouldErr: true,
			errMsg:    "traversal",
		},
		{
			name:      "hidden traversal in subdirectory",
			path:      "subdir/../../../etc/passwd",
			shouldErr: true,
			errMsg:    "traversal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Path("test_field", tt.path)

			if tt.shouldErr {
				if v.IsValid() {
					t.Errorf("expected validation to fail, but it passed")
				} else {
					err := v.Err()
					if err == nil {
						t.Fatal("expected validation error, got nil")
					}
					if !strings.Contains(err.Error(), tt.errMsg) {
						t.Errorf("expected error to contain %q, got %q", tt.errMsg, err)
					}
				}
			} else {
				if !v.IsValid() {
					t.Errorf("expected validation to pass, got error: %v", v.Err())
				}
			}
		})
	}
}

func TestValidatePath_Integration(t *testing.T) {
	// Test the validator with multiple fields
	v := New()

	v.Path("outputPath", "data/recording.mp4")
	v.Path("logPath", "logs/recording.log")
	v.Path("maliciousPath", "../../../etc/passwd")

	if v.IsValid() {
		t.Fatal("expected validation to fail")
	}

	errs := v.Errors()
	if len(errs) != 1 {
		t.Errorf("expected exactly 1 error, got %d", len(errs))
	}
	if len(errs) > 0 {
		if errs[0].Field != "maliciousPath" {
			t.Errorf("expected error for 'maliciousPath', got %q", errs[0].Field)
		}
		if !strings.Contains(errs[0].Message, "traversal") {
			t.Errorf("expected error message to contain 'traversal', got %q", errs[0].Message)
		}
	}
}
