package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/epinet/internal/simerr"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"padded trace", " trace ", LevelTrace},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "info", "Debug", "trace", "warn"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"warn filters info", "warn", false, false},
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "chunk detail")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger("info", &buf)
	logger.Info("run finished", "steps", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "run finished" || entry["steps"] != float64(3) {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewStepTracer_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "info")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	if st != nil {
		t.Error("expected nil StepTracer at info level")
	}

	// A nil tracer is still usable.
	st.Trace(StepEvent{Step: 1})
	if err := st.Close(); err != nil {
		t.Errorf("Close on nil tracer = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, TraceFile)); err == nil {
		t.Error("trace file should not exist at info level")
	}
}

func TestStepTracer_WritesOneLinePerStep(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	st, err := NewStepTracer(dir, "debug")
	if err != nil || st == nil {
		t.Fatalf("expected tracer at debug level, got %v", err)
	}

	st.Trace(StepEvent{Step: 0, S: 9, I: 1})
	st.Trace(StepEvent{Step: 1, S: 7, I: 3, Infections: 2, Duration: time.Millisecond})
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st.Trace(StepEvent{Step: 2}) // after close: dropped

	f, err := os.Open(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var events []StepEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev StepEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad trace line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[1].Infections != 2 || events[1].I != 3 || events[1].Duration != time.Millisecond {
		t.Errorf("second event = %+v", events[1])
	}
}

func TestStepTracer_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	st, err := NewStepTracer(dir, "trace")
	if err != nil {
		t.Fatalf("NewStepTracer: %v", err)
	}
	defer st.Close()
	st.Trace(StepEvent{})

	info, err := os.Stat(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("stat trace: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestNewStepTracer_OpenFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	st, err := NewStepTracer(filepath.Join(blocker, "trace"), "debug")
	if st != nil {
		t.Error("expected no tracer when the directory cannot be created")
	}
	if !errors.Is(err, simerr.ErrIO) {
		t.Errorf("NewStepTracer error = %v, want an I/O error", err)
	}
}

func TestTraceEnabled(t *testing.T) {
	for level, want := range map[string]bool{"warn": false, "info": false, "debug": true, "trace": true} {
		if got := TraceEnabled(level); got != want {
			t.Errorf("TraceEnabled(%q) = %v, want %v", level, got, want)
		}
	}
}
