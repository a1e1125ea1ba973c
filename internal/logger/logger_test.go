package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"WARNING", LevelWarning, false},
		{" error ", LevelError, false},
		{"trace", LevelTrace, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ERROR_SAMPLE_RATE", "10")
	t.Setenv("OTEL_ENABLED", "TRUE")
	t.Setenv("OTEL_SERVICE_NAME", "forms-api")

	cfg := ConfigFromEnv()
	if cfg.Level != LevelDebug || cfg.SampleRate != 10 || !cfg.OTELEnabled || cfg.ServiceName != "forms-api" {
		t.Errorf("unexpected config: %+v", cfg)
	}

	t.Setenv("ERROR_SAMPLE_RATE", "-3")
	if got := ConfigFromEnv().SampleRate; got != 1 {
		t.Errorf("negative sample rate should fall back to 1, got %d", got)
	}
}

func TestWarnCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	errorSampleRate.Store(1)

	before := TotalWarnings.Load()
	Warn("options failed", "field_id", "city")

	if got := TotalWarnings.Load() - before; got != 1 {
		t.Errorf("TotalWarnings advanced by %d, want 1", got)
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "options failed" || record["field_id"] != "city" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarning)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record written at warning level: %q", buf.String())
	}
	if GetLevel() != LevelWarning {
		t.Errorf("GetLevel() = %v", GetLevel())
	}
}

func TestCountHTTPStatus(t *testing.T) {
	before := Snapshot()
	CountHTTPStatus(200)
	CountHTTPStatus(404)
	CountHTTPStatus(503)
	after := Snapshot()

	if after.HTTP4xx-before.HTTP4xx != 1 {
		t.Errorf("4xx delta = %d", after.HTTP4xx-before.HTTP4xx)
	}
	if after.HTTP5xx-before.HTTP5xx != 1 {
		t.Errorf("5xx delta = %d", after.HTTP5xx-before.HTTP5xx)
	}
	if after.Errors-before.Errors != 1 {
		t.Errorf("errors delta = %d", after.Errors-before.Errors)
	}
}
