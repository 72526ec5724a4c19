package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONLoggerCarriesCycle(t *testing.T) {
	var buf bytes.Buffer
	logger := WithCycle(New(Config{Level: "debug"}, &buf), "c-1")
	logger.Debug().Str("component", "test").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("日志应为 JSON: %v (%s)", err, buf.String())
	}
	if line["cycle_id"] != "c-1" || line["message"] != "hello" || line["level"] != "debug" {
		t.Fatalf("unexpected log line %v", line)
	}
}

func TestLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "nonsense"}, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("invalid level should fall back to info: %s", buf.String())
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "console"}, &buf)
	logger.Info().Msg("readable")
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Fatalf("console format should not emit JSON: %s", buf.String())
	}
}

func TestFromContextTagsCycle(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug"}, &buf)

	untagged := FromContext(context.Background(), base)
	untagged.Info().Msg("untagged")
	if strings.Contains(buf.String(), "cycle_id") {
		t.Fatalf("无 cycle 的 context 不应添加 cycle_id: %s", buf.String())
	}

	buf.Reset()
	ctx := ContextWithCycle(context.Background(), "c-7")
	tagged := FromContext(ctx, base)
	tagged.Info().Msg("tagged")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("日志应为 JSON: %v (%s)", err, buf.String())
	}
	if line["cycle_id"] != "c-7" {
		t.Fatalf("expected cycle_id c-7, got %v", line)
	}
	if _, ok := CycleFromContext(ContextWithCycle(context.Background(), "")); ok {
		t.Fatalf("empty cycle id should not be reported")
	}
}
