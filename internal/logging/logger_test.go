package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONWithFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "msgview.log")
	logger, err := New(Options{Path: path, Profile: "work", Level: "debug"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("feed connected")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, data)
	}
	if entry["profile"] != "work" {
		t.Errorf("profile = %v, want work", entry["profile"])
	}
	if entry["msg"] != "feed connected" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestConsoleOnlyGetsWarnings(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(Options{Path: filepath.Join(t.TempDir(), "x.log"), Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	out := console.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("console received info entry: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("console missing warn entry: %q", out)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
