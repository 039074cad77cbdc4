package handler

import (
	"github.com/gin-gonic/gin"

	C "anomalydetect/config"
)

// InitAppRoutes registers the service routes on the engine.
func InitAppRoutes(r *gin.Engine, sv *C.Services) {
	r.POST("/fit/:series_id", FitHandler(sv))
	r.POST("/predict/:series_id", PredictHandler(sv))
	r.GET("/healthcheck", HealthcheckHandler(sv))
	r.GET("/plot", PlotHandler(sv))
}
