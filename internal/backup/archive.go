// Package backup moves stored runs between run databases as single archive
// files: a JSON header line followed by a gzip-compressed JSON payload whose
// SHA-256 is recorded in the header.
package backup

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
	"github.com/nvandessel/epinet/internal/store"
)

// FormatVersion is the archive layout written by Write.
const FormatVersion = 1

// MaxPayloadSize is the maximum allowed size of a decompressed payload (200MB).
const MaxPayloadSize = 200 * 1024 * 1024

// Header is the plain-text first line of an archive.
type Header struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	RunCount  int       `json:"run_count"`
	StepCount int       `json:"step_count"`
}

// Entry is one archived run with its recorded series.
type Entry struct {
	Run    store.Run         `json:"run"`
	Series simulation.Series `json:"series"`
}

// Archive is the decoded payload.
type Archive struct {
	CreatedAt time.Time `json:"created_at"`
	Runs      []Entry   `json:"runs"`
}

// Export collects the runs named by ids, or every run when ids is empty.
func Export(ctx context.Context, st *store.Store, ids []string) (*Archive, error) {
	if len(ids) == 0 {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
	}

	a := &Archive{CreatedAt: time.Now().UTC(), Runs: make([]Entry, 0, len(ids))}
	for _, id := range ids {
		run, err := st.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		series, err := st.Counts(ctx, id)
		if err != nil {
			return nil, err
		}
		run.Recorded = 0
		a.Runs = append(a.Runs, Entry{Run: run, Series: series})
	}
	return a, nil
}

// ImportResult lists what Import did with each archived run.
type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

// Import adds every archived run to st. Runs whose id is already present
// are skipped.
func Import(ctx context.Context, st *store.Store, a *Archive) (*ImportResult, error) {
	res := &ImportResult{Imported: []string{}, Skipped: []string{}}
	for _, e := range a.Runs {
		err := st.ImportRun(ctx, e.Run, e.Series)
		switch {
		case err == nil:
			res.Imported = append(res.Imported, e.Run.ID)
		case errors.Is(err, store.ErrRunExists):
			res.Skipped = append(res.Skipped, e.Run.ID)
		default:
			return res, err
		}
	}
	return res, nil
}

// Write stores a at path and returns the header it wrote.
func Write(path string, a *Archive) (*Header, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("compressing archive: %w", err)
	}

	header := &Header{
		Version:   FormatVersion,
		CreatedAt: a.CreatedAt,
		Checksum:  checksum(compressed.Bytes()),
		RunCount:  len(a.Runs),
	}
	for _, e := range a.Runs {
		header.StepCount += len(e.Series)
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, simerr.IO(path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.Write(headerBytes)
	w.WriteByte('\n')
	w.Write(compressed.Bytes())
	if err := w.Flush(); err != nil {
		return nil, simerr.IO(path, err)
	}
	if err := f.Close(); err != nil {
		return nil, simerr.IO(path, err)
	}
	return header, nil
}

// Read loads the archive at path after verifying its checksum.
func Read(path string) (*Archive, error) {
	_, compressed, err := readVerified(path)
	if err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%s: opening payload: %w", path, err)
	}
	defer gzr.Close()

	payload, err := io.ReadAll(io.LimitReader(gzr, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: decompressing payload: %w", path, err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%s: payload exceeds %d bytes", path, MaxPayloadSize)
	}

	var a Archive
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("%s: parsing payload: %w", path, err)
	}
	return &a, nil
}

// ReadHeader reads only the header line.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	defer f.Close()
	header, _, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return header, nil
}

// Verify checks the payload checksum without decompressing it.
func Verify(path string) (*Header, error) {
	header, _, err := readVerified(path)
	return header, err
}

func readVerified(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, simerr.IO(path, err)
	}
	defer f.Close()

	header, r, err := readHeader(bufio.NewReader(f))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, simerr.IO(path, err)
	}
	if got := checksum(compressed); got != header.Checksum {
		return nil, nil, fmt.Errorf("%s: checksum mismatch: expected %s, got %s", path, header.Checksum, got)
	}
	return header, compressed, nil
}

func readHeader(r *bufio.Reader) (*Header, *bufio.Reader, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}
	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatVersion {
		return nil, nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}
	return &header, r, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
