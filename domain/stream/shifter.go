package stream

// InferenceShifter lines predictions up with the record they predict. A
// prediction made on record t is reported with record t+1; the anomaly score
// stays with its own record.
type InferenceShifter struct {
	prev    map[int]float64
	hasPrev bool
}

func NewInferenceShifter() *InferenceShifter {
	return &InferenceShifter{}
}

// Shift returns result carrying the predictions of the previous record.
// The first record has none.
func (s *InferenceShifter) Shift(result ModelResult) ModelResult {
	current := result.Predictions
	if s.hasPrev {
		result.Predictions = s.prev
	} else {
		result.Predictions = nil
	}
	s.prev = current
	s.hasPrev = true
	return result
}
