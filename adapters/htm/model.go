package htm

import (
	"fmt"

	"riverview/domain/stream"
	"riverview/internal/errors"
)

// Model is a temporal anomaly model: encoders, spatial pooler, temporal memory
// and an SDR classifier, run one record at a time.
type Model struct {
	params Params

	encoder         *MultiEncoder
	classifierInput *ScalarEncoder
	sp              *SpatialPooler
	tm              *TemporalMemory
	cl              *SDRClassifier

	inference bool
	recordNum int
}

// NewModel builds a model from validated params
func NewModel(params Params) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	mp := params.ModelParams
	if !mp.SPEnable || !mp.TMEnable {
		return nil, errors.ConfigInvalid("temporal anomaly models need spEnable and tmEnable")
	}

	enc, classifierInput, err := buildEncoders(params)
	if err != nil {
		return nil, err
	}
	if mp.SPParams.InputWidth != 0 && mp.SPParams.InputWidth != enc.Width() {
		return nil, errors.ConfigInvalid(fmt.Sprintf("spParams.inputWidth %d does not match encoder width %d",
			mp.SPParams.InputWidth, enc.Width()))
	}

	m := &Model{
		params:          params.Clone(),
		encoder:         enc,
		classifierInput: classifierInput,
		sp:              NewSpatialPooler(mp.SPParams, enc.Width()),
		tm:              NewTemporalMemory(mp.TMParams),
	}
	if mp.CLEnable {
		m.cl = NewSDRClassifier(mp.CLParams, classifierInput.Buckets())
	}
	return m, nil
}

// EnableInference turns on predictions for the given field
func (m *Model) EnableInference(predictedField string) error {
	want := m.params.PredictedField
	if want == "" {
		want = ValueEncoder
	}
	if predictedField != want {
		return errors.InvalidInput(fmt.Sprintf("model predicts %q, not %q", want, predictedField))
	}
	if m.cl == nil {
		return errors.ConfigInvalid("inference needs clEnable")
	}
	m.inference = true
	return nil
}

// Run feeds one record through the model, learning on it, and returns its
// predictions and raw anomaly score
func (m *Model) Run(rec stream.Record) (stream.ModelResult, error) {
	input, err := m.encoder.Encode(rec)
	if err != nil {
		return stream.ModelResult{}, errors.Wrapf(err, "failed to encode record %d", m.recordNum)
	}

	prevPredicted := m.tm.PredictedColumns()
	active := m.sp.Compute(input, true)
	m.tm.Compute(active, true)

	result := stream.ModelResult{
		Record:       rec,
		AnomalyScore: RawAnomalyScore(active, prevPredicted),
	}

	if m.cl != nil {
		bucket, err := m.classifierInput.BucketIndex(rec.Value)
		if err != nil {
			return stream.ModelResult{}, errors.Wrapf(err, "failed to classify record %d", m.recordNum)
		}
		inferred := m.cl.Compute(m.recordNum, m.tm.ActiveCells(), bucket, rec.Value, true, m.inference)
		if m.inference {
			result.Predictions = make(map[int]float64, len(inferred))
			for step, c := range inferred {
				result.Predictions[step] = c.Best
			}
		}
	}

	m.recordNum++
	return result, nil
}
