// router/router.go

package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dev-mohitbeniwal/scorecache/controller"
	"github.com/dev-mohitbeniwal/scorecache/middleware"
)

// SetupRouter mounts the ops surface. Only mutating routes are rate limited.
func SetupRouter(
	controllers *controller.Controllers,
	limiter middleware.Limiter,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	api := router.Group("/api/v1")
	mutating := api.Group("")
	mutating.Use(middleware.RateLimiter(limiter, rateLimitRequests, rateLimitDuration))

	controllers.Cache.RegisterRoutes(api, mutating)
	router.GET("/metrics", controllers.Cache.Metrics)

	return router
}
