package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"cloudpico-bridge/internal/config"
)

func TestNewWithWriter_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo, DeviceID: "rpi3a"}

	logger := NewWithWriter(&buf, cfg, "1.2.3", "bridge")
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"msg":       "hello",
		"app":       "bridge",
		"version":   "1.2.3",
		"env":       "prod",
		"device_id": "rpi3a",
		"k":         "v",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %q", key, rec[key], want)
		}
	}
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}

	logger := NewWithWriter(&buf, cfg, "1.0.0", "bridge")
	logger.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("info record written at warn level: %q", buf.String())
	}
	logger.Warn("loud")
	if !strings.Contains(buf.String(), "loud") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestNewWithWriter_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}

	logger := NewWithWriter(&buf, cfg, "dev", "bridge")
	logger.Debug("tinted")

	out := buf.String()
	if !strings.Contains(out, "tinted") {
		t.Fatalf("dev output missing message: %q", out)
	}
	if json.Valid([]byte(strings.TrimSpace(out))) {
		t.Fatalf("dev output should not be JSON: %q", out)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Component(base, "uplink").Info("x")

	if !strings.Contains(buf.String(), `"component":"uplink"`) {
		t.Fatalf("component attribute missing: %q", buf.String())
	}
	if Component(nil, "y") == nil {
		t.Fatal("Component(nil) returned nil")
	}
}
