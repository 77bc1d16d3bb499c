package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPrettyHandler_PlainOutput(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request",
		"method", "POST",
		"path", "/auth/login",
		"status", 200,
		"duration_ms", int64(12),
	)

	out := sb.String()
	for _, want := range []string{
		"lvl=[INFO]",
		"msg=http.request",
		"method=POST",
		"path=/auth/login",
		"status=200",
		"duration_ms=12ms",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colorless handler emitted ANSI escapes: %q", out)
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn level")
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	h := newPrettyHandler(&sb, nil, false)
	log := slog.New(h).With("service", "authd").WithGroup("db")

	log.Info("pool.ready", "conns", 4)

	out := sb.String()
	if !strings.Contains(out, "service=authd") {
		t.Fatalf("missing base attr in %q", out)
	}
	if !strings.Contains(out, "db.conns=4") {
		t.Fatalf("missing grouped attr in %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: `""`},
		{in: "plain", want: "plain"},
		{in: "has space", want: `"has space"`},
		{in: `k=v`, want: `"k=v"`},
	}
	for _, tc := range cases {
		if got := quoteIfNeeded(tc.in); got != tc.want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestValueToString_Kinds(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		v    slog.Value
		want string
	}{
		{v: slog.StringValue("x"), want: "x"},
		{v: slog.IntValue(42), want: "42"},
		{v: slog.BoolValue(true), want: "true"},
		{v: slog.DurationValue(1500 * time.Millisecond), want: "1.5s"},
		{v: slog.TimeValue(ts), want: "2025-03-01T12:00:00Z"},
	}
	for _, tc := range cases {
		if got := valueToString(tc.v); got != tc.want {
			t.Fatalf("valueToString(%v)=%q want=%q", tc.v, got, tc.want)
		}
	}
}
