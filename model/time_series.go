package model

import (
	"errors"
	"fmt"
	"math"
)

// DataPoint is a single timestamped measurement of a series.
type DataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Validate checks unix timestamp boundaries and value finiteness.
func (dp *DataPoint) Validate() error {
	if dp.Timestamp < 0 {
		return errors.New("timestamp must be greater than or equal to 0")
	}

	if math.IsNaN(dp.Value) || math.IsInf(dp.Value, 0) {
		return errors.New("value cannot be NaN or infinite")
	}

	return nil
}

// TimeSeries is an ordered run of data points for one series.
// Validated once at ingestion, never mutated after.
type TimeSeries struct {
	Data []DataPoint `json:"data"`
}

// Validate enforces the base shape rules: at least two valid points
// with strictly increasing timestamps.
func (ts *TimeSeries) Validate() error {
	if len(ts.Data) < 2 {
		return errors.New("time series must contain at least 2 data points")
	}

	for i := range ts.Data {
		if err := ts.Data[i].Validate(); err != nil {
			return err
		}

		if i > 0 && ts.Data[i].Timestamp <= ts.Data[i-1].Timestamp {
			return errors.New("time series timestamps must be strictly increasing")
		}
	}

	return nil
}

// ValidateForTraining applies the training preflight rules on top of the
// base shape rules. minPoints comes from configuration.
func (ts *TimeSeries) ValidateForTraining(minPoints int) error {
	if len(ts.Data) < minPoints {
		return fmt.Errorf("input must contain at least %d data points", minPoints)
	}

	if err := ts.Validate(); err != nil {
		return err
	}

	isConstant := true
	for i := range ts.Data {
		if ts.Data[i].Value != ts.Data[0].Value {
			isConstant = false
			break
		}
	}
	if isConstant {
		return errors.New("input cannot contain constant values only")
	}

	return nil
}

// Values returns the measurement stream in order.
func (ts *TimeSeries) Values() []float64 {
	values := make([]float64, 0, len(ts.Data))
	for i := range ts.Data {
		values = append(values, ts.Data[i].Value)
	}

	return values
}
