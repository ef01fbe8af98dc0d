package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/michaelbrown/codetutor/internal/config"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", "command", "run_code")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["command"] != "run_code" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "worker.log")
	var buf bytes.Buffer
	logger, closer, err := New(config.LogConfig{File: path}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("file = %q, stderr = %q", data, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	if lvl, _ := ParseLevel("DEBUG"); lvl.String() != "DEBUG" {
		t.Errorf("level = %s", lvl)
	}
}
