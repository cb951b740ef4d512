package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hongianguyen/IndochinaPro/internal/middleware"
)

type RouterDeps struct {
	Itineraries *ItineraryHandler
	Ingests     *IngestHandler
	Knowledge   *KnowledgeHandler
	// GenerateRateLimit throttles generation endpoints per client; zero
	// disables the limiter.
	GenerateRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	generate := api.Group("")
	generate.Use(middleware.RateLimit(deps.GenerateRateLimit))
	generate.POST("/itineraries/generate", deps.Itineraries.Generate)
	generate.POST("/itineraries/generate/stream", deps.Itineraries.GenerateStream)
	generate.POST("/itineraries/refine", deps.Itineraries.Refine)

	api.POST("/ingest", deps.Ingests.Upload)
	api.POST("/ingest/stream", deps.Ingests.UploadStream)
	api.GET("/status", deps.Ingests.Status)

	api.POST("/knowledge", deps.Knowledge.Save)
	api.GET("/knowledge", deps.Knowledge.List)
	api.POST("/knowledge/invalidate", deps.Knowledge.Invalidate)
}
