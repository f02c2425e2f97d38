package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phax/ph-web-sub004/internal/log"
)

func TestNew(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "console", "dev", "JSON"} {
		if l, err := log.New(format, &bytes.Buffer{}, slog.LevelInfo); err != nil || l == nil {
			t.Errorf("log.New(%q) = (%v, %v), want logger", format, l, err)
		}
	}
	if _, err := log.New("xml", &bytes.Buffer{}, slog.LevelInfo); err == nil {
		t.Error("log.New(\"xml\") error = nil, want error")
	}
}

func TestNewJSON_Formatters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := log.NewJSON(&buf, slog.LevelDebug)
	l.Info("request",
		slog.Any("headers", http.Header{"Forwarded": {"for=a", "for=b"}}),
		slog.Any("error", errors.New("boom")),
		slog.Any("input", log.StringValue([]byte("for=x"))),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", buf.String(), err)
	}
	if diff := cmp.Diff(rec["headers"], map[string]any{"Forwarded": "for=a, for=b"}); diff != "" {
		t.Errorf("headers mismatch (-got +want):\n%s", diff)
	}
	if got, want := rec["input"], "for=x"; got != want {
		t.Errorf("input = %v, want %q", got, want)
	}
	errVal, ok := rec["error"].(map[string]any)
	if !ok || errVal["message"] != "boom" {
		t.Errorf("error = %v, want formatted error with message %q", rec["error"], "boom")
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	if log.OrNoop(nil) != log.Noop {
		t.Error("log.OrNoop(nil) != log.Noop")
	}
	if log.Noop.Enabled(t.Context(), slog.LevelError) {
		t.Error("log.Noop.Enabled() = true, want false")
	}
}
