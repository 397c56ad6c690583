package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/store/config"
	"fieldtrack-go/internal/store/handlers"
	"fieldtrack-go/internal/store/middleware"
)

// NewRouter builds the store API. photoDir is served under /photos when non-empty.
func NewRouter(cfg config.Config, h *handlers.StoreHandler, log *logging.Logger, photoDir string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Device-ID"},
	}))

	health := func(c *gin.Context) {
		c.JSON(200, gin.H{"success": true, "status": "ok"})
	}
	r.GET("/healthz", health)
	if photoDir != "" {
		r.Static("/photos", photoDir)
	}

	v1 := r.Group("/api/v1")
	v1.GET("/healthz", health)
	api := v1.Group("")
	api.Use(middleware.Auth(cfg.AuthToken))
	{
		api.POST("/locations", h.SaveLocation)
		api.GET("/locations", h.ListLocations)
		api.PATCH("/locations/:row", h.UpdateLocation)
		api.POST("/routes", h.SaveRoute)
		api.POST("/photos", h.SavePhoto)
	}
	return r
}
