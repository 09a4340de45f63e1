package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Set(New(&buf, "warn", "json"))

	Infof("hidden %d", 1)
	Warnf("visible %d", 2)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}

	if entry["level"] != "warn" {
		t.Errorf("expected level=warn, got %v", entry["level"])
	}
	if entry["message"] != "visible 2" {
		t.Errorf("expected message %q, got %v", "visible 2", entry["message"])
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Set(New(&buf, "loud", "json"))

	Debugf("debug line")
	Infof("info line")

	if bytes.Contains(buf.Bytes(), []byte("debug line")) {
		t.Errorf("expected debug output to be suppressed at info level")
	}
	if !bytes.Contains(buf.Bytes(), []byte("info line")) {
		t.Errorf("expected info output, got %q", buf.String())
	}
}

type countingStringer struct{ calls int }

func (s *countingStringer) String() string {
	s.calls++
	return "formatted"
}

func TestDebugf_DisabledLevelSkipsFormatting(t *testing.T) {
	var buf bytes.Buffer
	Set(New(&buf, "info", "json"))

	arg := &countingStringer{}
	Debugf("value %s", arg)

	if arg.calls != 0 {
		t.Errorf("expected no formatting below the configured level, String called %d times", arg.calls)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}

	Infof("value %s", arg)
	if arg.calls != 1 {
		t.Errorf("expected one formatting call at an enabled level, got %d", arg.calls)
	}
}
