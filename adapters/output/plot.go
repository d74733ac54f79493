package output

import (
	"fmt"
	"math"
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/anomaly"
	"riverview/internal/errors"
)

const (
	plotWidth  = 1400
	plotHeight = 600
)

// PlotWriter collects rows and renders them as a PNG on Close: value and
// prediction on the left axis, anomaly score and log likelihood on the right,
// anomalous points marked in red
type PlotWriter struct {
	path   string
	meta   stream.RunMeta
	rows   []stream.ResultRow
	logger *internal.Logger
}

func NewPlotWriter(path string, meta stream.RunMeta, logger *internal.Logger) *PlotWriter {
	return &PlotWriter{path: path, meta: meta, logger: logger}
}

func (w *PlotWriter) Write(row stream.ResultRow) error {
	w.rows = append(w.rows, row)
	return nil
}

func (w *PlotWriter) Path() string { return w.path }

// Close renders the chart and writes the PNG file
func (w *PlotWriter) Close() error {
	if len(w.rows) == 0 {
		return errors.InsufficientData("no rows to plot")
	}

	ch := w.chart()
	f, err := os.Create(w.path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", w.path)
	}
	if err := ch.Render(chart.PNG, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to render %s", w.path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", w.path)
	}
	w.logger.Info("Done. Plotted %d data points to %s.", len(w.rows), w.path)
	return nil
}

func (w *PlotWriter) chart() chart.Chart {
	rows := w.rows
	if len(rows) == 1 {
		// a time axis needs two distinct points
		dup := rows[0]
		dup.Timestamp = dup.Timestamp.Add(time.Second)
		rows = append([]stream.ResultRow{rows[0]}, dup)
	}

	var (
		times         = make([]time.Time, 0, len(rows))
		values        = make([]float64, 0, len(rows))
		scores        = make([]float64, 0, len(rows))
		logLikelihood = make([]float64, 0, len(rows))
		predTimes     []time.Time
		predValues    []float64
		anomalyTimes  []time.Time
		anomalyValues []float64
		lo, hi        = math.Inf(1), math.Inf(-1)
	)
	for _, r := range rows {
		times = append(times, r.Timestamp)
		values = append(values, r.Value)
		scores = append(scores, r.AnomalyScore)
		logLikelihood = append(logLikelihood, anomaly.LogLikelihood(r.AnomalyLikelihood))
		lo, hi = math.Min(lo, r.Value), math.Max(hi, r.Value)
		if r.HasPrediction {
			predTimes = append(predTimes, r.Timestamp)
			predValues = append(predValues, r.Prediction)
			lo, hi = math.Min(lo, r.Prediction), math.Max(hi, r.Prediction)
		}
		if anomaly.IsAnomaly(r.AnomalyLikelihood) {
			anomalyTimes = append(anomalyTimes, r.Timestamp)
			anomalyValues = append(anomalyValues, r.Value)
		}
	}
	if hi <= lo {
		hi = lo + 1
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    w.meta.Field,
			XValues: times,
			YValues: values,
			Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.5},
		},
	}
	if len(predTimes) > 1 {
		series = append(series, chart.TimeSeries{
			Name:    "prediction",
			XValues: predTimes,
			YValues: predValues,
			Style:   chart.Style{StrokeColor: chart.ColorGreen, StrokeWidth: 1, StrokeDashArray: []float64{4, 2}},
		})
	}
	series = append(series, chart.TimeSeries{
		Name:    "anomaly score",
		XValues: times,
		YValues: scores,
		YAxis:   chart.YAxisSecondary,
		Style:   chart.Style{StrokeColor: chart.ColorOrange, StrokeWidth: 1},
	}, chart.TimeSeries{
		Name:    "log likelihood",
		XValues: times,
		YValues: logLikelihood,
		YAxis:   chart.YAxisSecondary,
		Style:   chart.Style{StrokeColor: chart.ColorBlack, StrokeWidth: 1, StrokeDashArray: []float64{2, 2}},
	})
	if len(anomalyTimes) > 0 {
		series = append(series, chart.TimeSeries{
			Name:    "ANOMALY",
			XValues: anomalyTimes,
			YValues: anomalyValues,
			Style:   pointStyle(chart.ColorRed),
		})
	}

	ch := chart.Chart{
		Title:      w.title(),
		Width:      plotWidth,
		Height:     plotHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("01/02 15:04")},
		YAxis: chart.YAxis{
			Name:  w.meta.Field,
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		YAxisSecondary: chart.YAxis{
			Name:  "anomaly score",
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

func (w *PlotWriter) title() string {
	if w.meta.Aggregate != "" {
		return fmt.Sprintf("%s / %s (%s, aggregate %s)", w.meta.River, w.meta.Stream, w.meta.Field, w.meta.Aggregate)
	}
	return fmt.Sprintf("%s / %s (%s)", w.meta.River, w.meta.Stream, w.meta.Field)
}

// pointStyle draws markers without a connecting line
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 0,
		StrokeColor: drawing.ColorTransparent,
		DotWidth:    4,
		DotColor:    col,
	}
}
