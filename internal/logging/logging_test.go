package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})
	ctx := context.Background()

	log.Info(ctx, "dropped")
	log.Warn(ctx, "kept", String("host", "home"), Int("n", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "kept" || rec["host"] != "home" || rec["n"] != float64(3) {
		t.Fatalf("record = %v", rec)
	}
}

func TestWithTickLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Output: &buf})

	ctx := ContextWithTick(context.Background(), 17)
	if tick, ok := TickFromContext(ctx); !ok || tick != 17 {
		t.Fatalf("TickFromContext = %d, %v", tick, ok)
	}
	WithTickLogger(ctx, base).Debug(ctx, "advanced")
	if !strings.Contains(buf.String(), "tick=17") {
		t.Fatalf("output %q missing tick", buf.String())
	}

	if _, ok := TickFromContext(context.Background()); ok {
		t.Fatalf("empty context reported a tick")
	}
	if got := WithTickLogger(context.Background(), nil); got == nil {
		t.Fatalf("WithTickLogger(nil) = nil")
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "JSON", Output: &buf}).With(String("component", "rivals"))
	log.Info(context.Background(), "hack resolved", Float("stolen", 12.5), Bool("alert", true))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["component"] != "rivals" || rec["stolen"] != 12.5 || rec["alert"] != true {
		t.Fatalf("record = %v", rec)
	}
}

func TestNewFromEnvLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	if NewFromEnv() == nil {
		t.Fatalf("NewFromEnv returned nil")
	}
}

func TestNoopDiscards(t *testing.T) {
	l := Noop().With(String("k", "v"))
	l.Error(context.Background(), "ignored")
	if _, ok := l.(noop); !ok {
		t.Fatalf("Noop().With = %T, want noop", l)
	}
}
