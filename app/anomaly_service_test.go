package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"riverview/domain/core"
	"riverview/domain/stream"
	"riverview/internal"
	"riverview/internal/anomaly"
	"riverview/internal/errors"
	"riverview/internal/testkit"
)

type fixture struct {
	source  *testkit.FakeStreamSource
	models  *testkit.FakeModelFactory
	writers *testkit.MemoryWriterFactory
	service *AnomalyService
}

func newFixture(data *stream.Data) *fixture {
	f := &fixture{
		source:  &testkit.FakeStreamSource{Data: data},
		models:  &testkit.FakeModelFactory{},
		writers: &testkit.MemoryWriterFactory{},
	}
	f.service = NewAnomalyService(f.source, f.models.Factory(), f.writers.Factory(),
		anomaly.LikelihoodConfig{LearningPeriod: 5, EstimationSamples: 5}, internal.NewNopLogger())
	return f
}

func smallStream() *stream.Data {
	return &stream.Data{
		Type:    stream.TypeScalar,
		Headers: []string{"datetime", "air_temperature", "solar_radiation"},
		URL:     "http://river/data.json",
		Rows: [][]interface{}{
			{"2015/08/19 12:00:00", 21.3, 640.0},
			{"2015/08/19 13:00:00", nil, 701.5},
			{"2015/08/19 14:00:00", 22.0, nil},
			{"2015/08/19 15:00:00", 23.5, 512.0},
		},
	}
}

func TestRunWritesNonNullRows(t *testing.T) {
	f := newFixture(smallStream())

	summary, err := f.service.Run(context.Background(), RunRequest{
		River: "chicago-beach-weather", Stream: "Oak Street", Field: "solar_radiation",
		ParamsHash: core.Hash("abc"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RowsWritten)
	assert.Equal(t, 1, summary.RowsSkipped)
	assert.Equal(t, 512.0, summary.Min)
	assert.Equal(t, 701.5, summary.Max)
	assert.Equal(t, "solar_radiation_out.mem", summary.OutputPath)
	assert.False(t, summary.RunID == "")

	assert.Equal(t, 512.0, f.models.Min)
	assert.Equal(t, 701.5, f.models.Max)
	assert.Equal(t, []testkit.FetchCall{{River: "chicago-beach-weather", Stream: "Oak Street"}}, f.source.Calls())

	w := f.writers.Last
	require.True(t, w.Closed)
	require.Len(t, w.Rows, 3)
	assert.Equal(t, time.Date(2015, 8, 19, 13, 0, 0, 0, time.UTC), w.Rows[1].Timestamp)
	assert.Equal(t, 701.5, w.Rows[1].Value)
	assert.True(t, w.Rows[1].HasPrediction)
	assert.Equal(t, 701.5, w.Rows[1].Prediction, "unshifted: prediction made on this record")
	assert.Equal(t, 0.5, w.Rows[1].AnomalyLikelihood, "still probationary")
	assert.Equal(t, "solar_radiation", w.Meta.Field)
	assert.Equal(t, "http://river/data.json", w.Meta.URL)
	assert.Equal(t, core.Hash("abc"), w.Meta.ParamsHash)
}

func TestRunShiftsPredictionsWhenPlotting(t *testing.T) {
	f := newFixture(smallStream())

	_, err := f.service.Run(context.Background(), RunRequest{Field: "solar_radiation", Plot: true})
	require.NoError(t, err)

	w := f.writers.Last
	assert.True(t, w.Plot)
	require.Len(t, w.Rows, 3)
	assert.False(t, w.Rows[0].HasPrediction)
	assert.Equal(t, 640.0, w.Rows[1].Prediction)
	assert.Equal(t, 701.5, w.Rows[2].Prediction)
}

func TestRunAggregateForcesCountField(t *testing.T) {
	data := &stream.Data{
		Type:    "geospatial",
		Headers: []string{"datetime", "count"},
		Rows: [][]interface{}{
			{"2015/08/19 12:00:00", 4.0},
			{"2015/08/19 13:00:00", 4.0},
		},
	}
	f := newFixture(data)

	summary, err := f.service.Run(context.Background(), RunRequest{Field: "ignored", Aggregate: "1h"})
	require.NoError(t, err)
	assert.Equal(t, "count", summary.Field)
	assert.Equal(t, "1h", f.source.Calls()[0].Aggregate)
	assert.Equal(t, 4.0, f.models.Min)
	assert.Equal(t, 5.0, f.models.Max, "flat series is widened for the encoder")
}

func TestRunUnknownField(t *testing.T) {
	f := newFixture(smallStream())

	_, err := f.service.Run(context.Background(), RunRequest{Field: "wind_speed"})
	require.Error(t, err)
	assert.Equal(t, `The field name "wind_speed" does not exist in the given stream.`, err.Error())
	assert.Nil(t, f.writers.Last, "nothing is opened before the field is known")
}

func TestRunPropagatesFetchErrors(t *testing.T) {
	f := newFixture(nil)
	f.source.Err = errors.NotFound("The River or stream provided does not exist:\nhttp://x")

	_, err := f.service.Run(context.Background(), RunRequest{Field: "solar_radiation"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestRunClosesWriterOnModelFailure(t *testing.T) {
	f := newFixture(smallStream())
	f.models.Model = &testkit.FakeModel{FailOn: 2}

	_, err := f.service.Run(context.Background(), RunRequest{Field: "solar_radiation"})
	require.Error(t, err)
	assert.True(t, f.writers.Last.Closed)
	assert.Len(t, f.writers.Last.Rows, 1)
}

func TestRunBadTimestamp(t *testing.T) {
	data := smallStream()
	data.Rows[0][0] = "19-08-2015"
	f := newFixture(data)

	_, err := f.service.Run(context.Background(), RunRequest{Field: "solar_radiation"})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestRunHonorsCancellation(t *testing.T) {
	f := newFixture(smallStream())
	f.source.Data = smallStream()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Run(ctx, RunRequest{Field: "solar_radiation"})
	assert.Error(t, err)
	assert.Nil(t, f.writers.Last)
}

func TestRunCountsAnomalies(t *testing.T) {
	cfg := testkit.DefaultStreamConfig()
	cfg.Rows = 60
	f := newFixture(testkit.NewStreamGenerator(cfg).Generate())
	f.models.Model = &testkit.FakeModel{Score: 0.05}

	summary, err := f.service.Run(context.Background(), RunRequest{Field: "solar_radiation"})
	require.NoError(t, err)
	assert.Equal(t, 60, summary.RowsWritten)
	assert.Zero(t, summary.Anomalies, "a flat low score never looks anomalous")
	for _, r := range f.writers.Last.Rows {
		assert.False(t, anomaly.IsAnomaly(r.AnomalyLikelihood))
	}
}

func TestInspect(t *testing.T) {
	f := newFixture(smallStream())
	report, err := NewInspectService(f.source).Inspect(context.Background(), "r", "s", "")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Rows)
	require.Len(t, report.Fields, 2)
	assert.Equal(t, "air_temperature", report.Fields[0].Field)
	assert.Equal(t, 1, report.Fields[0].Nulls)
	assert.Equal(t, 701.5, report.Fields[1].Max)
}

func TestRunWarnsWhenStreamEndsInProbation(t *testing.T) {
	obs, logs := observer.New(zapcore.WarnLevel)
	svc := NewAnomalyService(&testkit.FakeStreamSource{Data: smallStream()},
		(&testkit.FakeModelFactory{}).Factory(), (&testkit.MemoryWriterFactory{}).Factory(),
		anomaly.LikelihoodConfig{LearningPeriod: 5, EstimationSamples: 5},
		internal.NewLoggerWithCore(internal.LogLevelInfo, obs))

	_, err := svc.Run(context.Background(), RunRequest{Field: "solar_radiation"})
	require.NoError(t, err)

	warnings := logs.FilterMessageSnippet("anomaly likelihood stays at 0.5").All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "first 10")
}
