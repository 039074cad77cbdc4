package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"anomalydetect/cache/latency"
	C "anomalydetect/config"
	U "anomalydetect/util"
)

// scope constants.
const SCOPE_REQUEST_ID = "requestId"

// route prefixes with a latency bucket.
const PREFIX_PATH_FIT = "/fit/"
const PREFIX_PATH_PREDICT = "/predict/"

// RequestIdGenerator tags every request with an id for log correlation
// and echoes it on the response.
func RequestIdGenerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := uuid.New().String()
		c.Set(SCOPE_REQUEST_ID, requestId)
		c.Writer.Header().Set("X-Request-Id", requestId)
		c.Next()
	}
}

// Logger writes one structured line per request after it completes.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := U.TimeNowZ()
		c.Next()

		log.WithFields(log.Fields{
			"request_id": c.GetString(SCOPE_REQUEST_ID),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": float64(U.TimeNowZ().Sub(start).Microseconds()) / 1000.0,
		}).Info("Processed request.")
	}
}

// Recovery converts panics into a 500 JSON response instead of killing
// the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{
					"request_id": c.GetString(SCOPE_REQUEST_ID),
					"path":       c.Request.URL.Path,
					"panic":      r,
				}).Error("Recovered from panic on request.")
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"error": "Internal server error."})
			}
		}()
		c.Next()
	}
}

// CustomCors allows the local frontend origins in development only.
func CustomCors(config *C.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.IsDevelopment() {
			corsConfig := cors.DefaultConfig()
			corsConfig.AllowOrigins = []string{"http://localhost:8080", "http://localhost:3000"}
			cors.New(corsConfig)(c)
		}

		c.Next()
	}
}

// LatencyRecorder measures train and predict requests and appends the
// sample to the matching Redis history, failures included. A push
// failure is logged, never surfaced to the client.
func LatencyRecorder(sv *C.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var target string
		if strings.HasPrefix(c.Request.URL.Path, PREFIX_PATH_FIT) {
			target = latency.TargetTrain
		} else if strings.HasPrefix(c.Request.URL.Path, PREFIX_PATH_PREDICT) {
			target = latency.TargetPredict
		}
		if target == "" {
			c.Next()
			return
		}

		start := U.TimeNowZ()
		c.Next()

		latencyMs := float64(U.TimeNowZ().Sub(start).Microseconds()) / 1000.0
		if err := latency.Push(sv.Redis, target, latencyMs,
			sv.Config.LatencyHistoryLimit); err != nil {
			log.WithFields(log.Fields{"target": target}).WithError(err).
				Error("Failed to record request latency.")
		}
	}
}
