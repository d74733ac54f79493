package testkit

import (
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"riverview/domain/stream"
)

// StreamGeneratorConfig configures a synthetic River View stream
type StreamGeneratorConfig struct {
	Name       string        `json:"name"`
	Field      string        `json:"field"`
	Rows       int           `json:"rows"`
	Start      time.Time     `json:"start"`
	Interval   time.Duration `json:"interval"`
	Period     int           `json:"period"` // rows per daily cycle
	Base       float64       `json:"base"`
	Amplitude  float64       `json:"amplitude"`
	Noise      float64       `json:"noise"`
	NullEvery  int           `json:"null_every"` // every Nth value is null; 0 disables
	SpikeAt    int           `json:"spike_at"`   // row replaced by SpikeValue; negative disables
	SpikeValue float64       `json:"spike_value"`
	Seed       int64         `json:"seed"`
}

// DefaultStreamConfig returns an hourly solar-radiation-like stream
func DefaultStreamConfig() StreamGeneratorConfig {
	return StreamGeneratorConfig{
		Name:      "chicago-beach-weather",
		Field:     "solar_radiation",
		Rows:      240,
		Start:     time.Date(2015, 8, 1, 0, 0, 0, 0, time.UTC),
		Interval:  time.Hour,
		Period:    24,
		Base:      300,
		Amplitude: 250,
		Noise:     5,
		SpikeAt:   -1,
		Seed:      42,
	}
}

// StreamGenerator produces deterministic daily-cycle streams
type StreamGenerator struct {
	config StreamGeneratorConfig
	rng    *rand.Rand
}

func NewStreamGenerator(config StreamGeneratorConfig) *StreamGenerator {
	return &StreamGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns the stream as the client decodes it
func (g *StreamGenerator) Generate() *stream.Data {
	c := g.config
	data := &stream.Data{
		Name:    c.Name,
		Type:    stream.TypeScalar,
		Headers: []string{stream.DatetimeField, c.Field},
	}
	period := c.Period
	if period <= 0 {
		period = 24
	}

	for i := 0; i < c.Rows; i++ {
		ts := c.Start.Add(time.Duration(i) * c.Interval).Format(stream.DateFormat)
		var value interface{}
		switch {
		case c.NullEvery > 0 && (i+1)%c.NullEvery == 0:
			value = nil
		case i == c.SpikeAt:
			value = c.SpikeValue
		default:
			phase := 2 * math.Pi * float64(i%period) / float64(period)
			value = c.Base + c.Amplitude*math.Sin(phase) + c.Noise*g.rng.NormFloat64()
		}
		data.Rows = append(data.Rows, []interface{}{ts, value})
	}
	return data
}

// JSON renders the stream as a River View data.json body
func (g *StreamGenerator) JSON() ([]byte, error) {
	data := g.Generate()
	return json.Marshal(map[string]interface{}{
		"name":    data.Name,
		"type":    data.Type,
		"headers": data.Headers,
		"data":    data.Rows,
	})
}
