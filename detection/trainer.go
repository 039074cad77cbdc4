package detection

import (
	"anomalydetect/model"
)

// Trainer runs one fit and reports the resulting state. The optional
// onComplete callback fires at most once, only on success, with the
// final state.
type Trainer struct {
	model      Model
	onComplete func(*model.ModelState)
}

func NewTrainer(m Model, onComplete func(*model.ModelState)) *Trainer {
	return &Trainer{model: m, onComplete: onComplete}
}

func (t *Trainer) Train(ts *model.TimeSeries) (*model.ModelState, error) {
	if err := t.model.Fit(ts); err != nil {
		return nil, err
	}

	state := t.model.Save()
	state.Metrics = map[string]float64{
		"points_used": float64(len(ts.Data)),
	}

	if t.onComplete != nil {
		t.onComplete(state)
	}

	return state, nil
}
