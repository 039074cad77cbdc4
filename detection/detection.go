package detection

import (
	"errors"
	"math"

	"anomalydetect/model"
)

// ModelName tags serialized states so a loader can tell what produced them.
const ModelName = "anomaly_detection_model"

var ErrNotTrained = errors.New("model must be trained before prediction")

// Model is one trainable anomaly detector. Fit or Load must run before
// Predict; Save emits a state that Load restores exactly.
type Model interface {
	Fit(ts *model.TimeSeries) error
	Predict(point model.DataPoint) (bool, error)
	Save() *model.ModelState
	Load(state *model.ModelState) error
}

var _ Model = (*ThresholdModel)(nil)

// ThresholdModel flags values above mean + 3*std of the training stream.
// One-sided: unusually low values are not anomalies.
type ThresholdModel struct {
	mean    float64
	std     float64
	trained bool
}

func NewThresholdModel() *ThresholdModel {
	return &ThresholdModel{}
}

// Fit computes the mean and population standard deviation of the series
// values. Pure compute, no I/O.
func (tm *ThresholdModel) Fit(ts *model.TimeSeries) error {
	values := ts.Values()
	if len(values) == 0 {
		return errors.New("cannot fit on an empty time series")
	}

	var sum float64
	for _, value := range values {
		sum += value
	}
	mean := sum / float64(len(values))

	var sqDiffSum float64
	for _, value := range values {
		sqDiffSum += (value - mean) * (value - mean)
	}

	tm.mean = mean
	tm.std = math.Sqrt(sqDiffSum / float64(len(values)))
	tm.trained = true
	return nil
}

func (tm *ThresholdModel) Predict(point model.DataPoint) (bool, error) {
	if !tm.trained {
		return false, ErrNotTrained
	}

	return point.Value > tm.mean+3*tm.std, nil
}

func (tm *ThresholdModel) Save() *model.ModelState {
	return &model.ModelState{
		Model: ModelName,
		Parameters: map[string]float64{
			"mean": tm.mean,
			"std":  tm.std,
		},
	}
}

// Load restores the model from a saved state. Both parameters must be
// present; a state without them cannot predict and is rejected.
func (tm *ThresholdModel) Load(state *model.ModelState) error {
	if err := state.Validate(); err != nil {
		return err
	}

	mean, hasMean := state.Parameters["mean"]
	std, hasStd := state.Parameters["std"]
	if !hasMean || !hasStd {
		return errors.New("model state is missing mean or std parameter")
	}

	tm.mean = mean
	tm.std = std
	tm.trained = true
	return nil
}
