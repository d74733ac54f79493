package ports

import (
	"context"

	"riverview/domain/stream"
)

// StreamSourcePort fetches one stream of a river
type StreamSourcePort interface {
	// FetchData returns the decoded stream. A non-empty aggregate requests
	// aggregated data and skips the scalar check.
	FetchData(ctx context.Context, river, streamID, aggregate string) (*stream.Data, error)
}
