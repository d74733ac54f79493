package stream

import (
	"time"

	"riverview/domain/core"
)

const (
	// DatetimeField is the header every River View stream carries its timestamps under
	DatetimeField = "datetime"
	// DateFormat is the layout of the datetime column, e.g. 2015/08/19 12:00:00
	DateFormat = "2006/01/02 15:04:05"
	// AggregateField replaces the requested field when a river is aggregated
	AggregateField = "count"
	// TypeScalar marks rivers whose rows are plain scalar readings
	TypeScalar = "scalar"
)

// Data is the decoded body of a River View data.json response.
// Cells are float64, string, bool or nil; rows are aligned to Headers.
type Data struct {
	Name    string
	Type    string
	Headers []string
	Rows    [][]interface{}
	URL     string
}

// FieldIndex returns the column of a header
func (d *Data) FieldIndex(field string) (int, bool) {
	for i, h := range d.Headers {
		if h == field {
			return i, true
		}
	}
	return -1, false
}

// Cell returns the value at row/col, or nil when the row is short
func (d *Data) Cell(row, col int) interface{} {
	if row < 0 || row >= len(d.Rows) || col < 0 || col >= len(d.Rows[row]) {
		return nil
	}
	return d.Rows[row][col]
}

// Float returns the numeric value at row/col. ok is false for nulls and non-numbers.
func (d *Data) Float(row, col int) (float64, bool) {
	return AsFloat(d.Cell(row, col))
}

// AsFloat converts a decoded JSON cell to float64
func AsFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Record is one input point fed to an anomaly model
type Record struct {
	Timestamp time.Time
	Value     float64
}

// ModelResult is what an anomaly model infers for one record
type ModelResult struct {
	Record       Record
	Predictions  map[int]float64 // steps ahead -> best predicted value
	AnomalyScore float64
}

// Prediction returns the best prediction the given number of steps ahead
func (r ModelResult) Prediction(steps int) (float64, bool) {
	if r.Predictions == nil {
		return 0, false
	}
	v, ok := r.Predictions[steps]
	return v, ok
}

// ResultRow is one line of output
type ResultRow struct {
	Timestamp         time.Time
	Value             float64
	Prediction        float64
	HasPrediction     bool
	AnomalyScore      float64
	AnomalyLikelihood float64
}

// RunMeta describes a run for output headers and metadata sheets
type RunMeta struct {
	RunID     core.RunID
	URL       string
	River     string
	Stream    string
	Field     string
	Aggregate string
	Min       float64
	Max       float64
	StartedAt time.Time

	// ParamsHash fingerprints the model params before the range was patched in
	ParamsHash core.Hash
}
