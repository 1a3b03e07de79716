package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arkline/internal/logging"
)

func TestJSONLoggerWritesNormalizedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arkline.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("record added",
		logging.Int64(logging.FieldRecordID, 7),
		logging.String(logging.FieldStep, "parse_filename"))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode log line %q: %v", raw, err)
	}
	if entry["msg"] != "record added" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Fatalf("level = %v", entry["level"])
	}
	if entry[logging.FieldRecordID] != float64(7) {
		t.Fatalf("record id = %v", entry[logging.FieldRecordID])
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("missing ts key")
	}
}

func TestConsoleLoggerPrefixesComponent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arkline.log")

	base, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger := logging.WithComponent(base, "dispatcher")
	logger.Debug("step queued", logging.Int64(logging.FieldRecordID, 3))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(raw))
	if !strings.Contains(line, "dispatcher: step queued") {
		t.Fatalf("component prefix missing: %q", line)
	}
	if !strings.Contains(line, "record_id=3") {
		t.Fatalf("attr missing: %q", line)
	}
}

func TestLoggerLevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arkline.log")

	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("suppressed")
	logger.Warn("kept")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(raw), "suppressed") {
		t.Fatalf("info line written at warn level: %s", raw)
	}
	if !strings.Contains(string(raw), "kept") {
		t.Fatalf("warn line missing: %s", raw)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
