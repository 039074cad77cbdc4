package latency

import (
	"math"
	"sort"
	"strconv"

	"github.com/gomodule/redigo/redis"
	log "github.com/sirupsen/logrus"
)

// Latency history buckets, one Redis list per request target.
const (
	TargetTrain   = "train_latencies"
	TargetPredict = "predict_latencies"
)

// Push appends one latency sample and trims the list to the newest
// historyLimit entries, pipelined on a single connection.
func Push(pool *redis.Pool, target string, latencyMs float64, historyLimit int) error {
	conn := pool.Get()
	defer conn.Close()

	if err := conn.Send("RPUSH", target, latencyMs); err != nil {
		return err
	}
	if err := conn.Send("LTRIM", target, -historyLimit, -1); err != nil {
		return err
	}
	if err := conn.Flush(); err != nil {
		return err
	}

	if _, err := conn.Receive(); err != nil {
		return err
	}
	_, err := conn.Receive()
	return err
}

// Latencies returns the finite numeric samples recorded for the target.
// Entries that do not parse as finite floats are skipped, not errors.
func Latencies(pool *redis.Pool, target string) ([]float64, error) {
	conn := pool.Get()
	defer conn.Close()

	values, err := redis.Strings(conn.Do("LRANGE", target, 0, -1))
	if err != nil {
		if err == redis.ErrNil {
			return []float64{}, nil
		}
		log.WithField("target", target).WithError(err).
			Error("Failed to read latency history.")
		return nil, err
	}

	samples := make([]float64, 0, len(values))
	for _, value := range values {
		sample, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(sample) || math.IsInf(sample, 0) {
			continue
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

// Average is the arithmetic mean of the samples, 0.0 when empty.
func Average(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	var sum float64
	for _, sample := range samples {
		sum += sample
	}
	return sum / float64(len(samples))
}

// Percentile95 is the nearest-rank 95th percentile, 0.0 when empty.
func Percentile95(samples []float64) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	rank := int(math.Ceil(0.95 * float64(len(sorted))))
	return sorted[rank-1]
}
