package output

import (
	"encoding/csv"
	"os"
	"strconv"

	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/errors"
)

// CSVWriter streams result rows to a CSV file
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	lines  int
	logger *internal.Logger
}

// NewCSVWriter creates the file and writes the header
func NewCSVWriter(path string, logger *internal.Logger) (*CSVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", path)
	}
	w := &CSVWriter{path: path, file: file, writer: csv.NewWriter(file), logger: logger}
	if err := w.writer.Write(Columns); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to write header to %s", path)
	}
	logger.Info("Preparing to output data to %s", path)
	return w, nil
}

func (w *CSVWriter) Write(row stream.ResultRow) error {
	if err := w.writer.Write(formatRow(row)); err != nil {
		return errors.Wrapf(err, "failed to write row to %s", w.path)
	}
	w.lines++
	return nil
}

// Close flushes the file and reports how many data lines were written
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return errors.Wrapf(flushErr, "failed to flush %s", w.path)
	}
	if closeErr != nil {
		return errors.Wrapf(closeErr, "failed to close %s", w.path)
	}
	w.logger.Info("Done. Wrote %d data lines to %s.", w.lines, w.path)
	return nil
}

func (w *CSVWriter) Path() string { return w.path }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
