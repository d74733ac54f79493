package testkit

import (
	"context"
	"sync"

	"riverview/domain/stream"
	"riverview/internal/errors"
	"riverview/ports"
)

// FetchCall records one FetchData invocation
type FetchCall struct {
	River     string
	Stream    string
	Aggregate string
}

// FakeStreamSource serves canned data
type FakeStreamSource struct {
	Data *stream.Data
	Err  error

	mu    sync.Mutex
	calls []FetchCall
}

func (f *FakeStreamSource) FetchData(ctx context.Context, river, streamID, aggregate string) (*stream.Data, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FetchCall{River: river, Stream: streamID, Aggregate: aggregate})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Data, nil
}

// Calls returns the recorded fetches
func (f *FakeStreamSource) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchCall(nil), f.calls...)
}

// FakeModel scores every record with Score and predicts the record's own value
type FakeModel struct {
	Score   float64
	FailOn  int // 1-based record that fails; 0 never fails
	Records []stream.Record
}

func (m *FakeModel) Run(rec stream.Record) (stream.ModelResult, error) {
	m.Records = append(m.Records, rec)
	if m.FailOn > 0 && len(m.Records) == m.FailOn {
		return stream.ModelResult{}, errors.InternalError("model exploded")
	}
	return stream.ModelResult{
		Record:       rec,
		Predictions:  map[int]float64{1: rec.Value},
		AnomalyScore: m.Score,
	}, nil
}

// FakeModelFactory hands out one FakeModel and remembers the range it was built for
type FakeModelFactory struct {
	Model    *FakeModel
	Min, Max float64
	Built    int
}

func (f *FakeModelFactory) Factory() ports.ModelFactory {
	return func(min, max float64) (ports.AnomalyModelPort, error) {
		f.Min, f.Max = min, max
		f.Built++
		if f.Model == nil {
			f.Model = &FakeModel{}
		}
		return f.Model, nil
	}
}

// MemoryWriter keeps result rows in memory
type MemoryWriter struct {
	Meta   stream.RunMeta
	Plot   bool
	Rows   []stream.ResultRow
	Closed bool
	Name   string
}

func (w *MemoryWriter) Write(row stream.ResultRow) error {
	if w.Closed {
		return errors.InternalError("write after close")
	}
	w.Rows = append(w.Rows, row)
	return nil
}

func (w *MemoryWriter) Close() error {
	w.Closed = true
	return nil
}

func (w *MemoryWriter) Path() string { return w.Name }

// MemoryWriterFactory opens MemoryWriters and keeps the last one
type MemoryWriterFactory struct {
	Last *MemoryWriter
}

func (f *MemoryWriterFactory) Factory() ports.ResultWriterFactory {
	return func(meta stream.RunMeta, plot bool) (ports.ResultWriterPort, error) {
		f.Last = &MemoryWriter{Meta: meta, Plot: plot, Name: meta.Field + "_out.mem"}
		return f.Last, nil
	}
}
