package htm

import (
	"fmt"
	"math"
	"sort"
	"time"

	"riverview/domain/stream"
	"riverview/internal/errors"
)

// ScalarEncoder maps a number onto w contiguous active bits out of n.
// A periodic encoder wraps its range and its bits around.
type ScalarEncoder struct {
	name       string
	n, w       int
	minVal     float64
	maxVal     float64
	clip       bool
	periodic   bool
	resolution float64
}

// NewScalarEncoder creates a bounded scalar encoder over [minVal, maxVal]
func NewScalarEncoder(name string, n, w int, minVal, maxVal float64, clip bool) (*ScalarEncoder, error) {
	if w <= 0 || w%2 == 0 {
		return nil, errors.ConfigInvalid(fmt.Sprintf("encoder %s: w must be a positive odd number", name))
	}
	if n <= w {
		return nil, errors.ConfigInvalid(fmt.Sprintf("encoder %s: n (%d) must exceed w (%d)", name, n, w))
	}
	if !(maxVal > minVal) {
		return nil, errors.ConfigInvalid(fmt.Sprintf("encoder %s: maxval must exceed minval", name))
	}
	return &ScalarEncoder{
		name:       name,
		n:          n,
		w:          w,
		minVal:     minVal,
		maxVal:     maxVal,
		clip:       clip,
		resolution: (maxVal - minVal) / float64(n-w),
	}, nil
}

// NewPeriodicEncoder creates a wrapping encoder where inputs radius apart share no bits
func NewPeriodicEncoder(name string, w int, minVal, maxVal, radius float64) (*ScalarEncoder, error) {
	if w <= 0 || w%2 == 0 || radius <= 0 || !(maxVal > minVal) {
		return nil, errors.ConfigInvalid(fmt.Sprintf("encoder %s: invalid periodic parameters", name))
	}
	resolution := radius / float64(w)
	n := int(math.Ceil((maxVal - minVal) / resolution))
	if n <= w {
		return nil, errors.ConfigInvalid(fmt.Sprintf("encoder %s: radius %g too wide for range", name, radius))
	}
	return &ScalarEncoder{
		name:       name,
		n:          n,
		w:          w,
		minVal:     minVal,
		maxVal:     maxVal,
		periodic:   true,
		resolution: resolution,
	}, nil
}

func (e *ScalarEncoder) Name() string { return e.name }

// Width is the number of output bits
func (e *ScalarEncoder) Width() int { return e.n }

// Buckets is the number of distinct encodings
func (e *ScalarEncoder) Buckets() int {
	if e.periodic {
		return e.n
	}
	return e.n - e.w + 1
}

// BucketIndex returns the bucket a value falls in
func (e *ScalarEncoder) BucketIndex(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.InvalidInput(fmt.Sprintf("encoder %s: cannot encode %v", e.name, v))
	}

	if e.periodic {
		span := e.maxVal - e.minVal
		offset := math.Mod(v-e.minVal, span)
		if offset < 0 {
			offset += span
		}
		return int(math.Floor(offset/e.resolution)) % e.n, nil
	}

	if v < e.minVal || v > e.maxVal {
		if !e.clip {
			return 0, errors.InvalidInput(fmt.Sprintf("encoder %s: %g outside [%g, %g]", e.name, v, e.minVal, e.maxVal))
		}
		v = math.Max(e.minVal, math.Min(e.maxVal, v))
	}
	bucket := int(math.Round((v - e.minVal) / e.resolution))
	if bucket > e.n-e.w {
		bucket = e.n - e.w
	}
	return bucket, nil
}

// Encode appends the active bit indexes for v, shifted by offset
func (e *ScalarEncoder) Encode(v float64, offset int, out []int) ([]int, error) {
	bucket, err := e.BucketIndex(v)
	if err != nil {
		return out, err
	}
	if !e.periodic {
		for i := 0; i < e.w; i++ {
			out = append(out, offset+bucket+i)
		}
		return out, nil
	}

	half := e.w / 2
	start := len(out)
	for i := -half; i <= half; i++ {
		bit := ((bucket+i)%e.n + e.n) % e.n
		out = append(out, offset+bit)
	}
	sort.Ints(out[start:])
	return out, nil
}

// fieldEncoder encodes one field of a record into a slice of the input space
type fieldEncoder interface {
	Name() string
	Width() int
	EncodeRecord(rec stream.Record, offset int, out []int) ([]int, error)
}

type valueEncoder struct {
	*ScalarEncoder
}

func (e valueEncoder) EncodeRecord(rec stream.Record, offset int, out []int) ([]int, error) {
	return e.Encode(rec.Value, offset, out)
}

// DateEncoder encodes the time of day of a record's timestamp
type DateEncoder struct {
	timeOfDay *ScalarEncoder
}

// NewDateEncoder creates a time-of-day encoder with w bits and a radius in hours
func NewDateEncoder(name string, w int, radiusHours float64) (*DateEncoder, error) {
	enc, err := NewPeriodicEncoder(name, w, 0, 24, radiusHours)
	if err != nil {
		return nil, err
	}
	return &DateEncoder{timeOfDay: enc}, nil
}

func (e *DateEncoder) Name() string { return e.timeOfDay.name }
func (e *DateEncoder) Width() int   { return e.timeOfDay.Width() }

func (e *DateEncoder) EncodeRecord(rec stream.Record, offset int, out []int) ([]int, error) {
	return e.timeOfDay.Encode(hourOfDay(rec.Timestamp), offset, out)
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// MultiEncoder concatenates field encoders in name order
type MultiEncoder struct {
	encoders []fieldEncoder
	width    int
}

// NewMultiEncoder orders encoders by name so the layout does not depend on map order
func NewMultiEncoder(encoders ...fieldEncoder) *MultiEncoder {
	sorted := append([]fieldEncoder(nil), encoders...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	m := &MultiEncoder{encoders: sorted}
	for _, e := range sorted {
		m.width += e.Width()
	}
	return m
}

// Width is the total number of input bits
func (m *MultiEncoder) Width() int { return m.width }

// Encode returns the sorted active input bits for a record
func (m *MultiEncoder) Encode(rec stream.Record) ([]int, error) {
	out := make([]int, 0, 64)
	offset := 0
	for _, e := range m.encoders {
		var err error
		if out, err = e.EncodeRecord(rec, offset, out); err != nil {
			return nil, err
		}
		offset += e.Width()
	}
	return out, nil
}

// buildEncoders creates the input encoder and the classifier bucket encoder
func buildEncoders(params Params) (*MultiEncoder, *ScalarEncoder, error) {
	var inputs []fieldEncoder
	var classifierInput *ScalarEncoder

	names := make([]string, 0, len(params.ModelParams.SensorParams.Encoders))
	for name := range params.ModelParams.SensorParams.Encoders {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := params.ModelParams.SensorParams.Encoders[name]
		if p == nil {
			continue
		}
		switch p.Type {
		case "ScalarEncoder":
			enc, err := NewScalarEncoder(name, p.N, p.W, p.MinVal, p.MaxVal, p.ClipInput)
			if err != nil {
				return nil, nil, err
			}
			if name == ClassifierInputEncoder {
				classifierInput = enc
			}
			if p.ClassifierOnly {
				continue
			}
			inputs = append(inputs, valueEncoder{enc})
		case "DateEncoder":
			enc, err := NewDateEncoder(name, int(p.TimeOfDay[0]), p.TimeOfDay[1])
			if err != nil {
				return nil, nil, err
			}
			inputs = append(inputs, enc)
		default:
			return nil, nil, errors.ConfigInvalid(fmt.Sprintf("encoder %q has unsupported type %q", name, p.Type))
		}
	}

	if len(inputs) == 0 {
		return nil, nil, errors.ConfigInvalid("no input encoders configured")
	}
	return NewMultiEncoder(inputs...), classifierInput, nil
}
