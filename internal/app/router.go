package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netbinder.io/netbinder/internal/api/handlers"
	"netbinder.io/netbinder/internal/api/middleware"
	"netbinder.io/netbinder/internal/api/openapi"
	"netbinder.io/netbinder/internal/config"
	"netbinder.io/netbinder/internal/pkg/logger"
)

// defaultAllowedOrigins applies when server.allowed_origins is empty.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

func newRouter(cfg *config.Config, server *handlers.Server, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), cors.New(buildCORSConfig(cfg)))

	// Operational endpoints live outside the contract.
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	levels := gin.WrapH(logger.LevelHandler())
	router.GET("/log/level", levels)
	router.PUT("/log/level", levels)
	router.GET(openapi.BasePath+"/openapi.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", openapi.Raw())
	})

	api := router.Group(openapi.BasePath, middleware.ErrorHandler(), middleware.MustOpenAPIValidator())
	handlers.RegisterHandlers(api, server)
	return router
}

// buildCORSConfig never combines a wildcard origin with credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	wildcard := false
	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case "*":
			wildcard = true
		default:
			origins = append(origins, origin)
		}
	}

	switch {
	case wildcard && !c.AllowCredentials && len(origins) == 0:
		c.AllowAllOrigins = true
	case len(origins) == 0:
		c.AllowOrigins = append([]string(nil), defaultAllowedOrigins...)
	default:
		c.AllowOrigins = origins
	}
	return c
}
