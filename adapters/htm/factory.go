package htm

import (
	"riverview/ports"
)

// NewModelFactory builds models from base params with the encoder range
// patched in and inference enabled on the predicted field
func NewModelFactory(base Params) ports.ModelFactory {
	return func(min, max float64) (ports.AnomalyModelPort, error) {
		params, err := base.WithRange(min, max)
		if err != nil {
			return nil, err
		}
		model, err := NewModel(params)
		if err != nil {
			return nil, err
		}
		field := params.PredictedField
		if field == "" {
			field = ValueEncoder
		}
		if err := model.EnableInference(field); err != nil {
			return nil, err
		}
		return model, nil
	}
}
