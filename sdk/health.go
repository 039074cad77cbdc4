package sdk

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"anomalydetect/cache/latency"
	C "anomalydetect/config"
	"anomalydetect/model"
	"anomalydetect/model/store"
)

type LatencySummary struct {
	Avg float64 `json:"avg"`
	P95 float64 `json:"p95"`
}

type HealthcheckResponse struct {
	SeriesTrained      uint64         `json:"series_trained"`
	TrainingLatencyMs  LatencySummary `json:"training_latency_ms"`
	InferenceLatencyMs LatencySummary `json:"inference_latency_ms"`
	Error              string         `json:"error,omitempty"`
}

// Healthcheck reports the distinct trained series count plus latency
// aggregates over the cached request histories.
func Healthcheck(sv *C.Services) (int, *HealthcheckResponse) {
	seriesTrained, err := store.CountSeries(sv.Db)
	if err != nil {
		serr := storeError("Unexpected error while counting series.", err)
		log.WithError(err).Error("Failed healthcheck on series count.")
		return serr.Status, &HealthcheckResponse{Error: serr.Message}
	}

	trainSamples, err := latency.Latencies(sv.Redis, latency.TargetTrain)
	if err != nil {
		return latencyCacheUnavailable(err)
	}

	predictSamples, err := latency.Latencies(sv.Redis, latency.TargetPredict)
	if err != nil {
		return latencyCacheUnavailable(err)
	}

	return http.StatusOK, &HealthcheckResponse{
		SeriesTrained: seriesTrained,
		TrainingLatencyMs: LatencySummary{
			Avg: latency.Average(trainSamples),
			P95: latency.Percentile95(trainSamples),
		},
		InferenceLatencyMs: LatencySummary{
			Avg: latency.Average(predictSamples),
			P95: latency.Percentile95(predictSamples),
		},
	}
}

func latencyCacheUnavailable(err error) (int, *HealthcheckResponse) {
	log.WithError(err).Error("Failed healthcheck on latency cache.")
	serr := model.NewUnavailableError("Latency cache unavailable. Please retry.", err)
	return serr.Status, &HealthcheckResponse{Error: serr.Message}
}
