// Package logging provides leveled logging and step tracing for epinet.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A StepTracer writing one JSON line per simulation step (trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/epinet/internal/simerr"
)

// LevelTrace is a custom slog level below Debug. At this level the driver
// also logs per-chunk detail.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the step trace inside its directory.
const TraceFile = "trace.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a level ParseLevel knows.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn", "warning", "info", "debug", "trace":
		return true
	}
	return false
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// NewLogger creates a leveled text logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(level)))
}

// NewJSONLogger creates a leveled logger that writes one JSON object per
// record, for machine-read output.
func NewJSONLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, handlerOptions(level)))
}

// StepEvent is one line of the step trace.
type StepEvent struct {
	Step       int           `json:"step"`
	S          int           `json:"s"`
	I          int           `json:"i"`
	R          int           `json:"r"`
	Infections int           `json:"infections"`
	Recoveries int           `json:"recoveries"`
	NewEdges   int           `json:"new_edges,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// StepTracer appends StepEvents to dir/trace.jsonl. It is safe for
// concurrent use. A nil StepTracer is valid and discards everything.
type StepTracer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewStepTracer opens dir/trace.jsonl for append. At info level or above it
// returns a nil tracer and creates nothing. A file that cannot be opened is
// reported as an I/O error.
func NewStepTracer(dir string, level string) (*StepTracer, error) {
	if !TraceEnabled(level) {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, simerr.IO(dir, err)
	}
	path := filepath.Join(dir, TraceFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	return &StepTracer{file: f, enc: json.NewEncoder(f)}, nil
}

// TraceEnabled reports whether level is verbose enough for a step trace.
func TraceEnabled(level string) bool {
	return ParseLevel(level) <= slog.LevelDebug
}

// Trace writes ev as a single line. Safe to call on a nil receiver.
func (st *StepTracer) Trace(ev StepEvent) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return
	}
	_ = st.enc.Encode(ev)
}

// Close closes the trace file. Safe to call on a nil receiver and more than
// once.
func (st *StepTracer) Close() error {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		return nil
	}
	err := st.file.Close()
	st.file = nil
	return err
}
