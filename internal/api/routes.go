package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/franaraujo77/investments-planner-sub008/internal/telemetry"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(telemetry.TracerName))

	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1")
	{
		users := v1.Group("/users/:userId")
		{
			users.POST("/recommendations", h.GenerateRecommendation)
			users.GET("/recommendations", h.GetRecommendation)
			users.DELETE("/recommendations", h.InvalidateRecommendation)
		}

		if h.batch != nil {
			admin := v1.Group("/admin")
			{
				admin.POST("/batch/recommendations", h.RunBatch)
			}
		}

		if h.prices != nil {
			market := v1.Group("/market")
			{
				market.GET("/prices", h.GetPrices)
				market.GET("/rates", h.GetRates)
				market.GET("/fundamentals", h.GetFundamentals)
			}
		}
	}
	return router
}
