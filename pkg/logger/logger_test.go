package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestInit_WritesJSONWithServiceField(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Output: &buf})
	l := Get()
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "upload-gateway" {
		t.Errorf("service: want upload-gateway, got %v", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message: want hello, got %v", entry["message"])
	}
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Output: &first})
	Init(Options{Output: &second})
	l := Get()
	l.Info().Msg("x")

	if first.Len() == 0 {
		t.Error("expected output on the first writer")
	}
	if second.Len() != 0 {
		t.Error("second Init must not replace the logger")
	}
}

func TestComponent_AddsField(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Output: &buf})
	l := Component("audit")
	l.Warn().Msg("queued")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "audit" {
		t.Errorf("component: want audit, got %v", entry["component"])
	}
}

func TestGet_PanicsBeforeInit(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Get()
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "trace",
		"DEBUG":   "debug",
		" warn ":  "warn",
		"warning": "warn",
		"error":   "error",
		"":        "info",
		"bogus":   "info",
	}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
