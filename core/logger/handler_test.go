package logger

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(format logFormat) (*structuredHandler, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	return handler, aw, buf
}

func drain(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	ctx := WithRID(Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	log := slog.New(handler).With("component", CompRegistration)
	LogEvent(ctx, log, slog.LevelInfo, "step.advance",
		slog.String("status", "ok"),
		slog.String("step", "email"),
		slog.String("next_step", "location"),
	)

	line := drain(t, aw, buf)
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=service.registration", "event=step.advance", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	handler, aw, buf := newTestHandler(formatJSON)
	ctx := WithRID(Background(), "rid-json")

	log := slog.New(handler).With("component", CompApproval)
	LogEvent(ctx, log, slog.LevelError, "approve.failed",
		slog.String("status", "error"),
		Err(errors.New("boom")),
		slog.Int64("target_id", 99),
	)

	line := drain(t, aw, buf)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.approval"`, `"event":"approve.failed"`, `"status":"fail"`, `"rid":"rid-json"`, `"target_id":99`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerDurationsInMillis(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	log := slog.New(handler)
	LogEvent(Background(), log, slog.LevelInfo, "sweep.done",
		slog.Duration("duration", 1500*time.Millisecond),
		slog.Any("backoff", 2*time.Second),
	)

	line := drain(t, aw, buf)
	if !strings.Contains(line, "duration_ms=1500") {
		t.Fatalf("expected duration_ms=1500, got %s", line)
	}
	if !strings.Contains(line, "backoff_ms=2000") {
		t.Fatalf("expected backoff_ms=2000, got %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerDropsBelowLevel(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	LogEvent(Background(), slog.New(handler), slog.LevelDebug, "noise")
	if line := drain(t, aw, buf); line != "" {
		t.Fatalf("debug line should be filtered, got %s", line)
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	handler, aw, buf := newTestHandler(formatKV)
	rawRID := "123:456:789"
	ctx := WithRID(Background(), rawRID)
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test")

	line := drain(t, aw, buf)
	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	handler, aw, buf := newTestHandler(formatJSON)
	rawRID := "12:34:56"
	ctx := WithRID(Background(), rawRID)
	LogEvent(ctx, slog.New(handler), slog.LevelInfo, "rid.test")

	line := drain(t, aw, buf)
	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.Allow() {
			allowed++
		}
	}
	if allowed != 3 {
		t.Fatalf("allowed = %d, want 3", allowed)
	}

	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("disabled sampler must allow everything")
	}
}

func TestParseRatioSpec(t *testing.T) {
	cases := map[string][2]int{
		"1/10": {1, 10},
		"25":   {1, 25},
		"0":    {0, 0},
		"x/y":  {0, 0},
		"":     {0, 0},
	}
	for spec, want := range cases {
		num, den := parseRatioSpec(spec)
		if num != want[0] || den != want[1] {
			t.Fatalf("parseRatioSpec(%q) = %d/%d, want %d/%d", spec, num, den, want[0], want[1])
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	got := SanitizeLimit("ab\x00c\u200bdé", 4)
	if got != "abcd" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
