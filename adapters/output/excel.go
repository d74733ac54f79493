package output

import (
	"github.com/xuri/excelize/v2"

	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/errors"
)

const (
	resultsSheet = "Results"
	runSheet     = "Run"
)

// ExcelWriter streams result rows into the Results sheet of a workbook and
// records the run in a Run sheet on Close
type ExcelWriter struct {
	path   string
	meta   stream.RunMeta
	file   *excelize.File
	stream *excelize.StreamWriter
	rows   int
	logger *internal.Logger
}

// NewExcelWriter creates the workbook and writes the header row
func NewExcelWriter(path string, meta stream.RunMeta, logger *internal.Logger) (*ExcelWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to name results sheet")
	}
	sw, err := f.NewStreamWriter(resultsSheet)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to open results sheet")
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to write header")
	}

	logger.Info("Preparing to output data to %s", path)
	return &ExcelWriter{path: path, meta: meta, file: f, stream: sw, logger: logger}, nil
}

func (w *ExcelWriter) Write(row stream.ResultRow) error {
	cell, err := excelize.CoordinatesToCellName(1, w.rows+2)
	if err != nil {
		return errors.Wrap(err, "failed to address row")
	}
	var prediction interface{}
	if row.HasPrediction {
		prediction = row.Prediction
	}
	values := []interface{}{
		row.Timestamp.Format(TimestampLayout),
		row.Value,
		prediction,
		row.AnomalyScore,
		row.AnomalyLikelihood,
	}
	if err := w.stream.SetRow(cell, values); err != nil {
		return errors.Wrapf(err, "failed to write row %d", w.rows+1)
	}
	w.rows++
	return nil
}

// Close flushes the results, writes the Run sheet and saves the workbook
func (w *ExcelWriter) Close() error {
	defer w.file.Close()

	if err := w.stream.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush results sheet")
	}
	if _, err := w.file.NewSheet(runSheet); err != nil {
		return errors.Wrap(err, "failed to create run sheet")
	}

	meta := [][]interface{}{
		{"run_id", w.meta.RunID.String()},
		{"url", w.meta.URL},
		{"river", w.meta.River},
		{"stream", w.meta.Stream},
		{"field", w.meta.Field},
		{"aggregate", w.meta.Aggregate},
		{"min", w.meta.Min},
		{"max", w.meta.Max},
		{"started_at", w.meta.StartedAt.Format(TimestampLayout)},
		{"params_hash", w.meta.ParamsHash.String()},
		{"rows", w.rows},
	}
	for i, kv := range meta {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "failed to address run sheet")
		}
		if err := w.file.SetSheetRow(runSheet, cell, &kv); err != nil {
			return errors.Wrapf(err, "failed to write %v", kv[0])
		}
	}

	if err := w.file.SaveAs(w.path); err != nil {
		return errors.Wrapf(err, "failed to save %s", w.path)
	}
	w.logger.Info("Done. Wrote %d data lines to %s.", w.rows, w.path)
	return nil
}

func (w *ExcelWriter) Path() string { return w.path }
