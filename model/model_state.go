package model

import "errors"

// ModelState is the serialized form of a trained model: an identifying
// tag plus the numeric parameters needed to restore it. Immutable once
// written to storage.
type ModelState struct {
	Model      string             `json:"model"`
	Parameters map[string]float64 `json:"parameters"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Validate rejects states that cannot restore a model.
func (ms *ModelState) Validate() error {
	if ms.Model == "" {
		return errors.New("model state is missing the model identifier")
	}

	if ms.Parameters == nil {
		return errors.New("model state is missing parameters")
	}

	return nil
}
