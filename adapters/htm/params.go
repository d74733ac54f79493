package htm

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"riverview/domain/core"
	"riverview/internal/anomaly"
	"riverview/internal/errors"
)

const (
	// ValueEncoder is the encoder fed into the spatial pooler
	ValueEncoder = "value"
	// ClassifierInputEncoder buckets the predicted field for the classifier only
	ClassifierInputEncoder = "_classifierInput"
)

//go:embed anomaly_params.yaml
var defaultParamsYAML []byte

// Params is the static configuration a model is built from
type Params struct {
	Model          string      `yaml:"model"`
	Version        int         `yaml:"version"`
	PredictedField string      `yaml:"predictedField"`
	ModelParams    ModelParams `yaml:"modelParams"`
}

// ModelParams groups the per-region settings
type ModelParams struct {
	InferenceType string                   `yaml:"inferenceType"`
	SensorParams  SensorParams             `yaml:"sensorParams"`
	SPEnable      bool                     `yaml:"spEnable"`
	SPParams      SPParams                 `yaml:"spParams"`
	TMEnable      bool                     `yaml:"tmEnable"`
	TMParams      TMParams                 `yaml:"tmParams"`
	CLEnable      bool                     `yaml:"clEnable"`
	CLParams      CLParams                 `yaml:"clParams"`
	AnomalyParams anomaly.LikelihoodConfig `yaml:"anomalyParams"`
}

// SensorParams holds the encoders. A nil entry disables that encoder.
type SensorParams struct {
	Verbosity int                       `yaml:"verbosity"`
	Encoders  map[string]*EncoderParams `yaml:"encoders"`
}

// EncoderParams configures one ScalarEncoder or DateEncoder
type EncoderParams struct {
	FieldName      string    `yaml:"fieldname"`
	Name           string    `yaml:"name"`
	Type           string    `yaml:"type"`
	N              int       `yaml:"n,omitempty"`
	W              int       `yaml:"w,omitempty"`
	MinVal         float64   `yaml:"minval"`
	MaxVal         float64   `yaml:"maxval"`
	ClipInput      bool      `yaml:"clipInput,omitempty"`
	ClassifierOnly bool      `yaml:"classifierOnly,omitempty"`
	TimeOfDay      []float64 `yaml:"timeOfDay,omitempty,flow"` // [w, radius in hours]
}

// SPParams configures the spatial pooler
type SPParams struct {
	ColumnCount                int     `yaml:"columnCount"`
	InputWidth                 int     `yaml:"inputWidth"` // 0 derives it from the encoders
	GlobalInhibition           bool    `yaml:"globalInhibition"`
	NumActiveColumnsPerInhArea int     `yaml:"numActiveColumnsPerInhArea"`
	PotentialPct               float64 `yaml:"potentialPct"`
	SynPermConnected           float64 `yaml:"synPermConnected"`
	SynPermActiveInc           float64 `yaml:"synPermActiveInc"`
	SynPermInactiveDec         float64 `yaml:"synPermInactiveDec"`
	Seed                       int64   `yaml:"seed"`
}

// TMParams configures the temporal memory
type TMParams struct {
	ColumnCount               int     `yaml:"columnCount"`
	CellsPerColumn            int     `yaml:"cellsPerColumn"`
	ActivationThreshold       int     `yaml:"activationThreshold"`
	MinThreshold              int     `yaml:"minThreshold"`
	NewSynapseCount           int     `yaml:"newSynapseCount"`
	InitialPerm               float64 `yaml:"initialPerm"`
	ConnectedPermanence       float64 `yaml:"connectedPermanence"`
	PermanenceInc             float64 `yaml:"permanenceInc"`
	PermanenceDec             float64 `yaml:"permanenceDec"`
	PredictedSegmentDecrement float64 `yaml:"predictedSegmentDecrement"`
	MaxSegmentsPerCell        int     `yaml:"maxSegmentsPerCell"`
	MaxSynapsesPerSegment     int     `yaml:"maxSynapsesPerSegment"`
	Seed                      int64   `yaml:"seed"`
}

// CLParams configures the SDR classifier
type CLParams struct {
	Alpha         float64 `yaml:"alpha"`
	ActValueAlpha float64 `yaml:"actValueAlpha"`
	Steps         []int   `yaml:"steps,flow"`
}

// DefaultParams decodes the embedded temporal anomaly params
func DefaultParams() (Params, error) {
	return decodeParams(defaultParamsYAML)
}

// LoadParamsFile decodes params from a YAML file
func LoadParamsFile(path string) (Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Params{}, errors.Wrapf(err, "failed to read model params %s", path)
	}
	params, err := decodeParams(raw)
	if err != nil {
		return Params{}, errors.Wrapf(err, "invalid model params %s", path)
	}
	return params, nil
}

func decodeParams(raw []byte) (Params, error) {
	var params Params
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return Params{}, errors.InvalidInput(fmt.Sprintf("cannot decode model params: %v", err))
	}
	if err := params.Validate(); err != nil {
		return Params{}, err
	}
	return params, nil
}

// YAML renders params back to the file format
func (p Params) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, errors.Wrap(err, "failed to encode model params")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode model params")
	}
	return buf.Bytes(), nil
}

// Fingerprint hashes the YAML form so runs with identical params can be matched
func (p Params) Fingerprint() (core.Hash, error) {
	raw, err := p.YAML()
	if err != nil {
		return "", err
	}
	return core.NewHash(raw), nil
}

// Clone deep-copies params so patches never leak into the static defaults
func (p Params) Clone() Params {
	out := p
	if p.ModelParams.SensorParams.Encoders != nil {
		encoders := make(map[string]*EncoderParams, len(p.ModelParams.SensorParams.Encoders))
		for name, enc := range p.ModelParams.SensorParams.Encoders {
			if enc == nil {
				encoders[name] = nil
				continue
			}
			c := *enc
			c.TimeOfDay = append([]float64(nil), enc.TimeOfDay...)
			encoders[name] = &c
		}
		out.ModelParams.SensorParams.Encoders = encoders
	}
	out.ModelParams.CLParams.Steps = append([]int(nil), p.ModelParams.CLParams.Steps...)
	return out
}

// WithRange returns a copy with minval/maxval set on the value and classifier
// input encoders
func (p Params) WithRange(min, max float64) (Params, error) {
	if !(max > min) {
		return Params{}, errors.InvalidInput(fmt.Sprintf("encoder range must be increasing, got [%g, %g]", min, max))
	}
	out := p.Clone()
	for _, name := range []string{ValueEncoder, ClassifierInputEncoder} {
		enc := out.ModelParams.SensorParams.Encoders[name]
		if enc == nil {
			return Params{}, errors.ConfigInvalid(fmt.Sprintf("model params have no %q encoder", name))
		}
		enc.MinVal = min
		enc.MaxVal = max
	}
	return out, nil
}

// Validate checks the params a model cannot run without
func (p Params) Validate() error {
	mp := p.ModelParams
	if len(mp.SensorParams.Encoders) == 0 {
		return errors.ConfigInvalid("model params define no encoders")
	}

	inputs := 0
	for name, enc := range mp.SensorParams.Encoders {
		if enc == nil {
			continue
		}
		if err := enc.validate(name); err != nil {
			return err
		}
		if !enc.ClassifierOnly {
			inputs++
		}
	}
	if inputs == 0 {
		return errors.ConfigInvalid("model params need at least one non classifier-only encoder")
	}
	if mp.CLEnable {
		if enc := mp.SensorParams.Encoders[ClassifierInputEncoder]; enc == nil || enc.Type != "ScalarEncoder" {
			return errors.ConfigInvalid("classifier requires a _classifierInput ScalarEncoder")
		}
		if mp.CLParams.Alpha <= 0 || len(mp.CLParams.Steps) == 0 {
			return errors.ConfigInvalid("classifier needs a positive alpha and at least one step")
		}
		for _, s := range mp.CLParams.Steps {
			if s < 1 {
				return errors.ConfigInvalid(fmt.Sprintf("classifier step %d must be at least 1", s))
			}
		}
	}

	if mp.SPEnable {
		sp := mp.SPParams
		if sp.ColumnCount <= 0 || sp.NumActiveColumnsPerInhArea <= 0 || sp.NumActiveColumnsPerInhArea > sp.ColumnCount {
			return errors.ConfigInvalid("spatial pooler needs 0 < numActiveColumnsPerInhArea <= columnCount")
		}
		if sp.PotentialPct <= 0 || sp.PotentialPct > 1 {
			return errors.ConfigInvalid("spatial pooler potentialPct must be in (0, 1]")
		}
		if !sp.GlobalInhibition {
			return errors.ConfigInvalid("only global inhibition is supported")
		}
	}

	if mp.TMEnable {
		tm := mp.TMParams
		if tm.CellsPerColumn <= 0 || tm.ColumnCount <= 0 {
			return errors.ConfigInvalid("temporal memory needs positive columnCount and cellsPerColumn")
		}
		if mp.SPEnable && tm.ColumnCount != mp.SPParams.ColumnCount {
			return errors.ConfigInvalid(fmt.Sprintf("temporal memory columnCount %d does not match spatial pooler %d",
				tm.ColumnCount, mp.SPParams.ColumnCount))
		}
		if tm.MinThreshold <= 0 || tm.ActivationThreshold < tm.MinThreshold {
			return errors.ConfigInvalid("temporal memory needs 0 < minThreshold <= activationThreshold")
		}
		if tm.NewSynapseCount <= 0 || tm.MaxSegmentsPerCell <= 0 || tm.MaxSynapsesPerSegment <= 0 {
			return errors.ConfigInvalid("temporal memory growth limits must be positive")
		}
	}
	return nil
}

func (e *EncoderParams) validate(name string) error {
	switch e.Type {
	case "ScalarEncoder":
		if e.FieldName != "value" {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: scalar encoders read the value field, not %q", name, e.FieldName))
		}
		if e.W <= 0 || e.W%2 == 0 {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: w must be a positive odd number", name))
		}
		if e.N <= e.W {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: n must exceed w", name))
		}
		if !(e.MaxVal > e.MinVal) {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: maxval must exceed minval", name))
		}
	case "DateEncoder":
		if e.FieldName != "timestamp" {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: date encoders read the timestamp field, not %q", name, e.FieldName))
		}
		if len(e.TimeOfDay) != 2 {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: timeOfDay must be [w, radius]", name))
		}
		w := int(e.TimeOfDay[0])
		if w <= 0 || w%2 == 0 || e.TimeOfDay[1] <= 0 {
			return errors.ConfigInvalid(fmt.Sprintf("encoder %q: timeOfDay needs odd w and positive radius", name))
		}
	default:
		return errors.ConfigInvalid(fmt.Sprintf("encoder %q has unsupported type %q", name, e.Type))
	}
	return nil
}
