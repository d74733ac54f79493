package htm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"riverview/domain/stream"
)

// smallParams shrinks the default model so tests run in milliseconds
func smallParams(t *testing.T) Params {
	t.Helper()
	p, err := DefaultParams()
	require.NoError(t, err)

	enc := p.ModelParams.SensorParams.Encoders
	enc[ValueEncoder].N = 100
	enc[ValueEncoder].W = 11
	enc[ClassifierInputEncoder].N = 50
	enc[ClassifierInputEncoder].W = 11

	sp := &p.ModelParams.SPParams
	sp.ColumnCount = 256
	sp.NumActiveColumnsPerInhArea = 10

	tm := &p.ModelParams.TMParams
	tm.ColumnCount = 256
	tm.CellsPerColumn = 4
	tm.ActivationThreshold = 6
	tm.MinThreshold = 4
	tm.NewSynapseCount = 10
	tm.MaxSegmentsPerCell = 16

	p.ModelParams.CLParams.Alpha = 0.1
	require.NoError(t, p.Validate())
	return p
}

func tmTestParams() TMParams {
	return TMParams{
		ColumnCount:           64,
		CellsPerColumn:        4,
		ActivationThreshold:   6,
		MinThreshold:          4,
		NewSynapseCount:       10,
		InitialPerm:           0.21,
		ConnectedPermanence:   0.5,
		PermanenceInc:         0.1,
		PermanenceDec:         0.1,
		MaxSegmentsPerCell:    8,
		MaxSynapsesPerSegment: 32,
		Seed:                  42,
	}
}

func records(values []float64) []stream.Record {
	start := time.Date(2015, 8, 19, 0, 0, 0, 0, time.UTC)
	out := make([]stream.Record, len(values))
	for i, v := range values {
		out[i] = stream.Record{Timestamp: start.Add(time.Duration(i) * 15 * time.Minute), Value: v}
	}
	return out
}
