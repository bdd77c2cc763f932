package config

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDuration_YAML(t *testing.T) {
	var v struct {
		Timeout Duration `yaml:"timeout"`
	}

	if err := yaml.Unmarshal([]byte("timeout: 250ms\n"), &v); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if v.Timeout.Duration() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", v.Timeout)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(out) != "timeout: 250ms\n" {
		t.Errorf("Unexpected YAML output: %q", out)
	}

	if err = yaml.Unmarshal([]byte("timeout: soon\n"), &v); err == nil {
		t.Error("Expected error for an invalid duration")
	}
}

func TestDuration_JSON(t *testing.T) {
	d := NewDuration(90 * time.Second)

	p, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(p) != `"1m30s"` {
		t.Errorf("Expected \"1m30s\", got %s", p)
	}

	var back Duration
	if err = json.Unmarshal(p, &back); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if back != d {
		t.Errorf("Expected %s, got %s", d, back)
	}
}

func TestDuration_Validate(t *testing.T) {
	if err := NewDuration(-time.Second).Validate(); err == nil {
		t.Error("Expected error for a negative duration")
	}
	if err := NewDuration(0).Validate(); err != nil {
		t.Errorf("Unexpected error for zero duration: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		name     string
		expected slog.Level
		wantErr  bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			level, err := ParseLogLevel(tc.name)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Expected error %v, got %v", tc.wantErr, err)
			}
			if level != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, level)
			}
		})
	}
}
