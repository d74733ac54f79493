package htm

// RawAnomalyScore is the fraction of active columns that were not predicted.
// Both slices must be sorted.
func RawAnomalyScore(activeColumns, prevPredictedColumns []int) float64 {
	if len(activeColumns) == 0 {
		return 0
	}
	if len(prevPredictedColumns) == 0 {
		return 1
	}

	overlap := 0
	i, j := 0, 0
	for i < len(activeColumns) && j < len(prevPredictedColumns) {
		switch {
		case activeColumns[i] == prevPredictedColumns[j]:
			overlap++
			i++
			j++
		case activeColumns[i] < prevPredictedColumns[j]:
			i++
		default:
			j++
		}
	}
	return 1 - float64(overlap)/float64(len(activeColumns))
}
