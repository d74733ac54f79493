package ports

import "riverview/domain/stream"

// AnomalyModelPort scores records one at a time. Implementations keep
// sequence state, so records must be fed in time order.
type AnomalyModelPort interface {
	Run(rec stream.Record) (stream.ModelResult, error)
}

// ModelFactory builds a fresh model for a field observed in [min, max]
type ModelFactory func(min, max float64) (AnomalyModelPort, error)
