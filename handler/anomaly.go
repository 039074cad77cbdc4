package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "anomalydetect/config"
	"anomalydetect/sdk"
)

// FitHandler trains a new model version for the series in the path.
// POST /fit/:series_id
func FitHandler(sv *C.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seriesID := c.Params.ByName("series_id")

		var payload sdk.TrainPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			log.WithField("series_id", seriesID).WithError(err).
				Error("Failed to unmarshal train request body.")
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
				gin.H{"error": "Invalid request body. Expected timestamps and values arrays."})
			return
		}

		status, response := sdk.Train(sv, seriesID, &payload)
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"error": response.Error})
			return
		}

		c.JSON(status, response)
	}
}

// PredictHandler runs inference against a trained version. The version
// query parameter defaults to latest and accepts "2" or "v2" forms.
// POST /predict/:series_id?version=<int|vN>
func PredictHandler(sv *C.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seriesID := c.Params.ByName("series_id")

		version, err := sdk.ParseVersion(c.Query("version"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
				gin.H{"error": err.Error()})
			return
		}

		var payload sdk.PredictPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			log.WithField("series_id", seriesID).WithError(err).
				Error("Failed to unmarshal predict request body.")
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
				gin.H{"error": "Invalid request body. Expected timestamp and value."})
			return
		}

		status, response := sdk.Predict(sv, seriesID, version, &payload)
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"error": response.Error})
			return
		}

		c.JSON(status, response)
	}
}

// HealthcheckHandler reports trained series count and request latency
// aggregates. GET /healthcheck
func HealthcheckHandler(sv *C.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, response := sdk.Healthcheck(sv)
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"error": response.Error})
			return
		}

		c.JSON(status, response)
	}
}

const plotPageTemplate = `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<h2>%s</h2>
<img src="%s" alt="%s">
</body>
</html>`

// PlotHandler renders an HTML page embedding a chart of the stored
// training data. GET /plot?series_id=<id>&version=<int|vN>
func PlotHandler(sv *C.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		seriesID := c.Query("series_id")

		version, err := sdk.ParseVersion(c.Query("version"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
				gin.H{"error": err.Error()})
			return
		}

		status, response := sdk.Plot(sv, seriesID, version)
		if status != http.StatusOK {
			c.AbortWithStatusJSON(status, gin.H{"error": response.Error})
			return
		}

		page := fmt.Sprintf(plotPageTemplate, response.Title,
			response.Title, response.ChartURL, response.Title)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
}
