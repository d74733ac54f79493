package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riverview/domain/core"
	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/anomaly"
	"riverview/internal/errors"
	"riverview/internal/profiling"
	"riverview/ports"
)

// AnomalyService runs one stream through an anomaly model and writes the results
type AnomalyService struct {
	source     ports.StreamSourcePort
	models     ports.ModelFactory
	writers    ports.ResultWriterFactory
	likelihood anomaly.LikelihoodConfig
	logger     *internal.Logger
	now        func() time.Time
}

// RunRequest names the stream to model
type RunRequest struct {
	River     string
	Stream    string
	Field     string
	Aggregate string
	Plot      bool

	// ParamsHash is recorded with the run; optional
	ParamsHash core.Hash
}

// RunSummary describes a finished run
type RunSummary struct {
	RunID       core.RunID    `json:"run_id"`
	URL         string        `json:"url"`
	Field       string        `json:"field"`
	Min         float64       `json:"min"`
	Max         float64       `json:"max"`
	RowsWritten int           `json:"rows_written"`
	RowsSkipped int           `json:"rows_skipped"`
	Anomalies   int           `json:"anomalies"`
	OutputPath  string        `json:"output_path"`
	Duration    time.Duration `json:"duration"`
}

// NewAnomalyService creates an anomaly service
func NewAnomalyService(
	source ports.StreamSourcePort,
	models ports.ModelFactory,
	writers ports.ResultWriterFactory,
	likelihood anomaly.LikelihoodConfig,
	logger *internal.Logger,
) *AnomalyService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AnomalyService{
		source:     source,
		models:     models,
		writers:    writers,
		likelihood: likelihood,
		logger:     logger,
		now:        time.Now,
	}
}

// ResolveField returns the field a request models; aggregated rivers are
// always modelled on their count
func ResolveField(req RunRequest) string {
	if req.Aggregate != "" {
		return stream.AggregateField
	}
	return req.Field
}

// Run fetches the stream, sizes the model to the field's range and feeds every
// non-null row through it in order
func (s *AnomalyService) Run(ctx context.Context, req RunRequest) (summary *RunSummary, err error) {
	started := s.now()
	field := ResolveField(req)
	if field == "" {
		return nil, errors.InvalidInput("a field name is required")
	}

	data, err := s.source.FetchData(ctx, req.River, req.Stream, req.Aggregate)
	if err != nil {
		return nil, err
	}

	min, max, err := profiling.FieldRange(data, field)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Field %s spans [%g, %g] over %d rows", field, min, max, len(data.Rows))

	valueCol, _ := data.FieldIndex(field)
	timeCol, ok := data.FieldIndex(stream.DatetimeField)
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("The stream has no %q field.", stream.DatetimeField))
	}

	if n := s.likelihood.ProbationaryPeriod(); len(data.Rows) <= n {
		s.logger.Warn("Stream has %d rows; anomaly likelihood stays at 0.5 for the first %d", len(data.Rows), n)
	}

	lo, hi := profiling.EncoderRange(min, max)
	model, err := s.models(lo, hi)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build anomaly model")
	}

	meta := stream.RunMeta{
		RunID:      core.NewRunID(),
		URL:        data.URL,
		River:      req.River,
		Stream:     req.Stream,
		Field:      field,
		Aggregate:  req.Aggregate,
		Min:        min,
		Max:        max,
		StartedAt:  started,
		ParamsHash: req.ParamsHash,
	}
	writer, err := s.writers(meta, req.Plot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil && err == nil {
			summary, err = nil, closeErr
		}
	}()

	logger := s.logger.With("run_id", meta.RunID.String())
	summary = &RunSummary{
		RunID:      meta.RunID,
		URL:        data.URL,
		Field:      field,
		Min:        min,
		Max:        max,
		OutputPath: writer.Path(),
	}

	var shifter *stream.InferenceShifter
	if req.Plot {
		shifter = stream.NewInferenceShifter()
	}
	likelihood := anomaly.NewLikelihood(s.likelihood)

	for i := range data.Rows {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "run cancelled")
		}

		value, ok := data.Float(i, valueCol)
		if !ok {
			summary.RowsSkipped++
			continue
		}
		timestamp, err := parseTimestamp(data.Cell(i, timeCol))
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}

		result, err := model.Run(stream.Record{Timestamp: timestamp, Value: value})
		if err != nil {
			return nil, errors.Wrapf(err, "model failed on row %d", i)
		}
		if shifter != nil {
			result = shifter.Shift(result)
		}

		row := stream.ResultRow{
			Timestamp:         timestamp,
			Value:             value,
			AnomalyScore:      result.AnomalyScore,
			AnomalyLikelihood: likelihood.Probability(result.AnomalyScore),
		}
		row.Prediction, row.HasPrediction = result.Prediction(1)
		if err := writer.Write(row); err != nil {
			return nil, err
		}

		summary.RowsWritten++
		if anomaly.IsAnomaly(row.AnomalyLikelihood) {
			summary.Anomalies++
		}
		logger.Trace("%s value=%g prediction=%g score=%.3f likelihood=%.5f",
			timestamp.Format(stream.DateFormat), value, row.Prediction, row.AnomalyScore, row.AnomalyLikelihood)
	}

	summary.Duration = s.now().Sub(started)
	logger.Info("Modelled %d rows of %s (%d skipped, %d anomalous)",
		summary.RowsWritten, field, summary.RowsSkipped, summary.Anomalies)
	return summary, nil
}

func parseTimestamp(cell interface{}) (time.Time, error) {
	s, ok := cell.(string)
	if !ok {
		return time.Time{}, errors.InvalidInput(fmt.Sprintf("timestamp %v is not a string", cell))
	}
	ts, err := time.Parse(stream.DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.InvalidInput(fmt.Sprintf("cannot parse timestamp %q: %v", s, err))
	}
	return ts, nil
}
