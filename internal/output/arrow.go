package output

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
)

// SeriesSchema is the Arrow schema of the series stream.
var SeriesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "step", Type: arrow.PrimitiveTypes.Int64},
	{Name: "s", Type: arrow.PrimitiveTypes.Int64},
	{Name: "i", Type: arrow.PrimitiveTypes.Int64},
	{Name: "r", Type: arrow.PrimitiveTypes.Int64},
}, nil)

// ArrowSeries writes the series as an Arrow IPC stream, one single-row
// record batch per step. Each batch is on disk once Observe returns.
type ArrowSeries struct {
	path string
	f    *os.File
	w    *ipc.Writer
	b    *array.RecordBuilder
}

// NewArrowSeries creates path and starts the stream.
func NewArrowSeries(path string) (*ArrowSeries, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	mem := memory.NewGoAllocator()
	return &ArrowSeries{
		path: path,
		f:    f,
		w:    ipc.NewWriter(f, ipc.WithSchema(SeriesSchema), ipc.WithAllocator(mem)),
		b:    array.NewRecordBuilder(mem, SeriesSchema),
	}, nil
}

// Observe implements simulation.Observer.
func (a *ArrowSeries) Observe(step int, pop epidemic.Population, c epidemic.Counts) error {
	a.b.Field(0).(*array.Int64Builder).Append(int64(step))
	a.b.Field(1).(*array.Int64Builder).Append(int64(c.S))
	a.b.Field(2).(*array.Int64Builder).Append(int64(c.I))
	a.b.Field(3).(*array.Int64Builder).Append(int64(c.R))
	rec := a.b.NewRecord()
	defer rec.Release()
	if err := a.w.Write(rec); err != nil {
		return simerr.IO(a.path, err)
	}
	return nil
}

// Close ends the stream and closes the file.
func (a *ArrowSeries) Close() error {
	if a.f == nil {
		return nil
	}
	a.b.Release()
	werr := a.w.Close()
	ferr := a.f.Close()
	a.f = nil
	if werr != nil {
		return simerr.IO(a.path, werr)
	}
	if ferr != nil {
		return simerr.IO(a.path, ferr)
	}
	return nil
}

// ReadArrowSeries reads a stream written by ArrowSeries back into a series,
// ordered by the step column.
func ReadArrowSeries(r io.Reader) (simulation.Series, error) {
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	defer rdr.Release()
	if !rdr.Schema().Equal(SeriesSchema) {
		return nil, fmt.Errorf("reading arrow stream: unexpected schema %s", rdr.Schema())
	}

	var series simulation.Series
	for rdr.Next() {
		rec := rdr.Record()
		steps := rec.Column(0).(*array.Int64)
		s := rec.Column(1).(*array.Int64)
		i := rec.Column(2).(*array.Int64)
		rr := rec.Column(3).(*array.Int64)
		for row := 0; row < int(rec.NumRows()); row++ {
			step := int(steps.Value(row))
			if step != len(series) {
				return nil, fmt.Errorf("reading arrow stream: expected step %d, got %d", len(series), step)
			}
			series = append(series, epidemic.Counts{S: int(s.Value(row)), I: int(i.Value(row)), R: int(rr.Value(row))})
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("reading arrow stream: %w", err)
	}
	return series, nil
}
