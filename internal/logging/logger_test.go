package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		" error ": slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriterTagsApp(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "CryptoExchange")
	logger.Info("dropped")
	logger.Warn("kept")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "kept" || line["app"] != "CryptoExchange" {
		t.Fatalf("unexpected log line %v", line)
	}
}
