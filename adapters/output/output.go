package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/errors"
	"riverview/ports"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	// TimestampLayout is how timestamps are written to data files
	TimestampLayout = "2006-01-02 15:04:05"
)

// Columns is the header of every data file
var Columns = []string{"timestamp", "value", "prediction", "anomaly_score", "anomaly_likelihood"}

// Config selects where and how results are written
type Config struct {
	Dir    string
	Format string
}

// New opens the writer for a run: a PNG plot when plot is set, otherwise a
// data file in the configured format. Files are named <field>_out.<ext>.
func New(cfg Config, meta stream.RunMeta, plot bool, logger *internal.Logger) (ports.ResultWriterPort, error) {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	base := filepath.Join(dir, baseName(meta.Field))

	if plot {
		return NewPlotWriter(base+".png", meta, logger), nil
	}
	switch strings.ToLower(cfg.Format) {
	case "", FormatCSV:
		return NewCSVWriter(base+".csv", logger)
	case FormatXLSX:
		return NewExcelWriter(base+".xlsx", meta, logger)
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unknown output format %q", cfg.Format))
	}
}

func baseName(field string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, field)
	return name + "_out"
}

// formatRow renders a row as data file cells; a missing prediction is empty
func formatRow(row stream.ResultRow) []string {
	prediction := ""
	if row.HasPrediction {
		prediction = formatFloat(row.Prediction)
	}
	return []string{
		row.Timestamp.Format(TimestampLayout),
		formatFloat(row.Value),
		prediction,
		formatFloat(row.AnomalyScore),
		formatFloat(row.AnomalyLikelihood),
	}
}
