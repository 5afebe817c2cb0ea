package mcp

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
}

func readAudit(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit entry %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	logger, err := NewAuditLogger(path)
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	logger.Log(AuditEntry{
		Timestamp:  time.Now(),
		Tool:       toolSimulate,
		DurationMs: 42,
		Status:     "success",
		RunID:      "abc",
		Params:     map[string]string{"policy": "contact"},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	logger.Log(AuditEntry{Tool: "after close"})

	entries := readAudit(t, path)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Tool != toolSimulate || e.DurationMs != 42 || e.RunID != "abc" || e.Params["policy"] != "contact" {
		t.Errorf("unexpected entry %+v", e)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: toolGrow, Status: "success"})
		}()
	}
	wg.Wait()
	logger.Close()

	if n := len(readAudit(t, path)); n != 50 {
		t.Errorf("got %d entries, want 50", n)
	}
}

func TestAuditParamsHidesPaths(t *testing.T) {
	got := auditParams(map[string]any{
		"population": 100,
		"graph_file": "/home/someone/edges.txt",
		"save_edges": "",
	})
	if got["population"] != "100" {
		t.Errorf("population = %q", got["population"])
	}
	if got["graph_file"] != "(set)" || got["save_edges"] != "(set)" {
		t.Errorf("paths leaked: %v", got)
	}
}

func TestAuditTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	s := &Server{audit: logger}

	s.auditTool(toolRuns, time.Now(), nil, "", nil)
	s.auditTool(toolRuns, time.Now(), errors.New("boom"), "", nil)
	logger.Close()

	entries := readAudit(t, path)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" || entries[1].Error != "boom" {
		t.Errorf("unexpected entries %+v", entries)
	}
}
