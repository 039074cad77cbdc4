package sdk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"anomalydetect/model"
	"anomalydetect/model/store"
)

// VersionLatest is the query convention for "highest version trained".
const VersionLatest = uint64(0)

type TrainPayload struct {
	Timestamps []int64   `json:"timestamps"`
	Values     []float64 `json:"values"`
}

type TrainResponse struct {
	SeriesID   string `json:"series_id,omitempty"`
	Version    string `json:"version,omitempty"`
	PointsUsed int    `json:"points_used,omitempty"`
	Error      string `json:"error,omitempty"`
}

type PredictPayload struct {
	// Arrives as a string of digits on the wire.
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

type PredictResponse struct {
	Anomaly      bool   `json:"anomaly"`
	ModelVersion string `json:"model_version"`
	Error        string `json:"error,omitempty"`
}

var nonDigitPattern = regexp.MustCompile(`[^0-9]`)

// ParseVersion reads a version query value, tolerating "1", "v1" and
// "V1" forms by stripping every non-digit. Empty input means latest;
// input with no digits at all is malformed.
func ParseVersion(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return VersionLatest, nil
	}

	digits := nonDigitPattern.ReplaceAllString(trimmed, "")
	if digits == "" {
		return 0, errors.Errorf("invalid version '%s'", raw)
	}

	version, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid version '%s'", raw)
	}
	return version, nil
}

// toTimeSeries converts the parallel-array train body into an ordered
// TimeSeries without validating it. Shape errors surface here; content
// rules run in the validators.
func (payload *TrainPayload) toTimeSeries() (*model.TimeSeries, error) {
	if payload == nil {
		return nil, errors.New("request body is required")
	}

	if len(payload.Timestamps) != len(payload.Values) {
		return nil, errors.New("timestamps and values must have the same length")
	}
	if len(payload.Timestamps) == 0 {
		return nil, errors.New("timestamps and values cannot be empty")
	}

	data := make([]model.DataPoint, 0, len(payload.Timestamps))
	for i := range payload.Timestamps {
		data = append(data, model.DataPoint{
			Timestamp: payload.Timestamps[i],
			Value:     payload.Values[i],
		})
	}

	return &model.TimeSeries{Data: data}, nil
}

// toDataPoint parses the predict body, converting the wire timestamp
// string into an integer.
func (payload *PredictPayload) toDataPoint() (model.DataPoint, error) {
	var point model.DataPoint
	if payload == nil {
		return point, errors.New("request body is required")
	}

	trimmed := strings.TrimSpace(payload.Timestamp)
	if trimmed == "" {
		return point, errors.New("timestamp is required")
	}

	timestamp, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return point, errors.Errorf("timestamp '%s' is not an integer", payload.Timestamp)
	}

	point = model.DataPoint{Timestamp: timestamp, Value: payload.Value}
	if err := point.Validate(); err != nil {
		return point, err
	}
	return point, nil
}

// storeError classifies a relational failure that is neither a
// validation nor a not-found condition.
func storeError(message string, err error) *model.ServiceError {
	if store.IsUnavailable(err) {
		return model.NewUnavailableError(
			"Database unavailable. Please retry.", err)
	}

	return model.NewInternalError(message, err)
}
