// Package output provides the result sinks a simulation run writes to.
// Every sink is a simulation.Observer that persists each step as soon as it
// is observed, so an interrupted run leaves a valid prefix on disk.
package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/meanfield"
	"github.com/nvandessel/epinet/internal/simerr"
)

// SeriesHeader is the first line of every series file.
const SeriesHeader = "S,I,R"

// create opens path for writing, creating parent directories.
func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, simerr.IO(path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	return f, nil
}

// SeriesCSV writes one "S,I,R" line per step.
type SeriesCSV struct {
	path string
	f    *os.File
	w    *csv.Writer
	rec  []string
}

// NewSeriesCSV creates path and writes the header.
func NewSeriesCSV(path string) (*SeriesCSV, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	s := &SeriesCSV{path: path, f: f, w: csv.NewWriter(f), rec: make([]string, 3)}
	if err := s.write(strings.Split(SeriesHeader, ",")); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *SeriesCSV) write(rec []string) error {
	if err := s.w.Write(rec); err != nil {
		return simerr.IO(s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return simerr.IO(s.path, err)
	}
	return nil
}

// Observe implements simulation.Observer.
func (s *SeriesCSV) Observe(step int, pop epidemic.Population, c epidemic.Counts) error {
	s.rec[0] = strconv.Itoa(c.S)
	s.rec[1] = strconv.Itoa(c.I)
	s.rec[2] = strconv.Itoa(c.R)
	return s.write(s.rec)
}

// Close closes the file.
func (s *SeriesCSV) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return simerr.IO(s.path, err)
	}
	return nil
}

// StatesCSV writes the compartment of every node, one line per step, as
// comma separated 0/1/2 tags.
type StatesCSV struct {
	path string
	f    *os.File
	w    *bufio.Writer
	buf  []byte
}

// NewStatesCSV creates path.
func NewStatesCSV(path string) (*StatesCSV, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	return &StatesCSV{path: path, f: f, w: bufio.NewWriter(f)}, nil
}

// Observe implements simulation.Observer.
func (s *StatesCSV) Observe(step int, pop epidemic.Population, c epidemic.Counts) error {
	s.buf = s.buf[:0]
	for u, tag := range pop {
		if u > 0 {
			s.buf = append(s.buf, ',')
		}
		s.buf = strconv.AppendUint(s.buf, uint64(tag), 10)
	}
	s.buf = append(s.buf, '\n')
	if _, err := s.w.Write(s.buf); err != nil {
		return simerr.IO(s.path, err)
	}
	if err := s.w.Flush(); err != nil {
		return simerr.IO(s.path, err)
	}
	return nil
}

// Close closes the file.
func (s *StatesCSV) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	if err != nil {
		return simerr.IO(s.path, err)
	}
	return nil
}

// WritePoints writes a real-valued trajectory with the series header.
// precision is the number of decimals; 0 rounds to whole nodes.
func WritePoints(w io.Writer, pts []meanfield.Point, precision int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(SeriesHeader, ",")); err != nil {
		return err
	}
	rec := make([]string, 3)
	for _, p := range pts {
		rec[0] = strconv.FormatFloat(p.S, 'f', precision, 64)
		rec[1] = strconv.FormatFloat(p.I, 'f', precision, 64)
		rec[2] = strconv.FormatFloat(p.R, 'f', precision, 64)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SavePoints writes pts to path.
func SavePoints(path string, pts []meanfield.Point, precision int) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	if err := WritePoints(f, pts, precision); err != nil {
		f.Close()
		return simerr.IO(path, err)
	}
	if err := f.Close(); err != nil {
		return simerr.IO(path, err)
	}
	return nil
}

// ReadPoints parses a series file. The header is optional; integer and real
// values are both accepted.
func ReadPoints(r io.Reader) ([]meanfield.Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var pts []meanfield.Point
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return pts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading series: %w", err)
		}
		if line == 1 && strings.EqualFold(strings.Join(rec, ","), SeriesHeader) {
			continue
		}
		var vals [3]float64
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("reading series: line %d: %q is not a number", line, field)
			}
			vals[i] = v
		}
		pts = append(pts, meanfield.Point{S: vals[0], I: vals[1], R: vals[2]})
	}
}

// LoadPoints reads a series file from path.
func LoadPoints(path string) ([]meanfield.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	defer f.Close()
	pts, err := ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return pts, nil
}
