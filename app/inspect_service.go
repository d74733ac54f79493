package app

import (
	"context"

	"riverview/internal/profiling"
	"riverview/ports"
)

// InspectService summarises a stream without modelling it
type InspectService struct {
	source ports.StreamSourcePort
}

// StreamReport is what inspect prints
type StreamReport struct {
	Name    string                   `json:"name"`
	URL     string                   `json:"url"`
	Type    string                   `json:"type"`
	Headers []string                 `json:"headers"`
	Rows    int                      `json:"rows"`
	Fields  []profiling.FieldProfile `json:"fields"`
}

func NewInspectService(source ports.StreamSourcePort) *InspectService {
	return &InspectService{source: source}
}

// Inspect fetches a stream and profiles every numeric field
func (s *InspectService) Inspect(ctx context.Context, river, streamID, aggregate string) (*StreamReport, error) {
	data, err := s.source.FetchData(ctx, river, streamID, aggregate)
	if err != nil {
		return nil, err
	}
	return &StreamReport{
		Name:    data.Name,
		URL:     data.URL,
		Type:    data.Type,
		Headers: data.Headers,
		Rows:    len(data.Rows),
		Fields:  profiling.ProfileStream(data),
	}, nil
}
