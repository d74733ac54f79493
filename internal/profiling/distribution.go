package profiling

import (
	"math"

	"github.com/montanaflynn/stats"

	"riverview/domain/stream"
)

// FieldProfile summarizes one numeric field of a stream
type FieldProfile struct {
	Field    string  `json:"field"`
	Count    int     `json:"count"`
	Nulls    int     `json:"nulls"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Median   float64 `json:"median"`
	Skewness float64 `json:"skewness"`
}

// ProfileStream profiles every header that carries at least one number.
// The datetime column is never profiled.
func ProfileStream(data *stream.Data) []FieldProfile {
	var profiles []FieldProfile
	for _, field := range data.Headers {
		if field == stream.DatetimeField {
			continue
		}
		profile, err := ProfileField(data, field)
		if err != nil || profile.Count == 0 {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles
}

// ProfileField computes summary statistics for one field
func ProfileField(data *stream.Data, field string) (FieldProfile, error) {
	values, nulls, err := FieldValues(data, field)
	if err != nil {
		return FieldProfile{}, err
	}

	profile := FieldProfile{Field: field, Count: len(values), Nulls: nulls}
	if len(values) == 0 {
		return profile, nil
	}

	// Errors from stats only signal empty input, which is ruled out above
	profile.Min, _ = stats.Min(values)
	profile.Max, _ = stats.Max(values)
	profile.Mean, _ = stats.Mean(values)
	profile.StdDev, _ = stats.StandardDeviation(values)
	profile.Median, _ = stats.Median(values)
	profile.Skewness = calculateSkewness(values, profile.Mean, profile.StdDev)

	return profile, nil
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0

	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	skewness := sumCubedDeviations / n

	// Bias correction for sample skewness
	correction := math.Sqrt(n*(n-1)) / (n - 2)
	return skewness * correction
}
