package profiling

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"riverview/domain/stream"
	"riverview/internal/errors"
)

// FieldValues collects the numeric values of one field, skipping null gaps and
// non-numeric cells. nulls counts the rows that contributed nothing.
func FieldValues(data *stream.Data, field string) (values []float64, nulls int, err error) {
	idx, ok := data.FieldIndex(field)
	if !ok {
		return nil, 0, errors.InvalidInput(fmt.Sprintf(
			"The field name %q does not exist in the given stream.", field))
	}

	values = make([]float64, 0, len(data.Rows))
	for row := range data.Rows {
		if v, ok := data.Float(row, idx); ok {
			values = append(values, v)
		} else {
			nulls++
		}
	}
	return values, nulls, nil
}

// FieldRange returns the observed min and max of a field
func FieldRange(data *stream.Data, field string) (min, max float64, err error) {
	values, _, err := FieldValues(data, field)
	if err != nil {
		return 0, 0, err
	}
	if len(values) == 0 {
		return 0, 0, errors.InsufficientData(fmt.Sprintf("field %q has no numeric values", field))
	}

	if min, err = stats.Min(values); err != nil {
		return 0, 0, errors.Wrap(err, "failed to compute minimum")
	}
	if max, err = stats.Max(values); err != nil {
		return 0, 0, errors.Wrap(err, "failed to compute maximum")
	}
	return min, max, nil
}

// EncoderRange widens a degenerate range so a scalar encoder can bucket it
func EncoderRange(min, max float64) (float64, float64) {
	if max > min {
		return min, max
	}
	return min, min + 1
}
