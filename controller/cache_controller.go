// controller/cache_controller.go
package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/metrics"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/service"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

type CacheController struct {
	invalidationService service.IInvalidationService
	warmingService      service.IWarmingService
	statsService        service.IStatsService
	gatherer            prometheus.Gatherer
	warmWindow          time.Duration
}

func NewCacheController(
	invalidationService service.IInvalidationService,
	warmingService service.IWarmingService,
	statsService service.IStatsService,
	gatherer prometheus.Gatherer,
	warmWindow time.Duration,
) *CacheController {
	return &CacheController{
		invalidationService: invalidationService,
		warmingService:      warmingService,
		statsService:        statsService,
		gatherer:            gatherer,
		warmWindow:          warmWindow,
	}
}

// RegisterRoutes registers the read-only routes on r and the mutating ones
// on mutating, which the router rate limits.
func (cc *CacheController) RegisterRoutes(r *gin.RouterGroup, mutating *gin.RouterGroup) {
	cache := r.Group("/cache")
	{
		cache.GET("/health", cc.GetHealth)
		cache.GET("/stats", cc.GetStats)
	}
	writes := mutating.Group("/cache")
	{
		writes.POST("/invalidations", cc.Invalidate)
		writes.POST("/warm", cc.Warm)
		writes.POST("/policies/rotate", cc.RotatePolicy)
	}
}

// GetHealth endpoint. Degraded answers 503 so load balancers can act on it.
func (cc *CacheController) GetHealth(c *gin.Context) {
	report := cc.statsService.Health(c)
	code := http.StatusOK
	if report.Status == model.HealthDegraded {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// GetStats endpoint
func (cc *CacheController) GetStats(c *gin.Context) {
	window, err := util.ParseWindow(c.Query("window"), cc.statsService.Window())
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid window", err)
		return
	}
	c.JSON(http.StatusOK, cc.statsService.Snapshot(c, window))
}

// Invalidate endpoint
func (cc *CacheController) Invalidate(c *gin.Context) {
	var req model.InvalidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid invalidation request", err)
		return
	}

	result, err := cc.invalidationService.Invalidate(c, req.SubjectID, req.PolicyVersion)
	if err != nil {
		cc.respondWithStoreError(c, "Failed to invalidate cache", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Warm endpoint
func (cc *CacheController) Warm(c *gin.Context) {
	var req model.WarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid warm request", err)
		return
	}
	window, err := util.ParseWindow(req.Window, cc.warmWindow)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid window", err)
		return
	}

	var stats model.WarmStats
	if req.SubjectID != "" {
		stats = cc.warmingService.WarmSubject(c, req.SubjectID, window)
	} else {
		stats = cc.warmingService.WarmRecent(c, window)
	}
	if stats.Error != "" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RotatePolicy endpoint
func (cc *CacheController) RotatePolicy(c *gin.Context) {
	var req model.RotatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid policy rotation request", err)
		return
	}
	window, err := util.ParseWindow(req.Window, cc.warmWindow)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid window", err)
		return
	}

	result, stats, err := cc.invalidationService.RotatePolicy(c, req.SubjectID, req.OldPolicyVersion, window)
	if err != nil {
		cc.respondWithStoreError(c, "Failed to rotate policy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidation": result, "warming": stats})
}

// Metrics endpoint, in the Prometheus text exposition format.
func (cc *CacheController) Metrics(c *gin.Context) {
	c.Header("Content-Type", metrics.ContentType)
	c.Status(http.StatusOK)
	if err := metrics.WriteText(c.Writer, cc.gatherer); err != nil {
		_ = c.Error(err)
	}
}

func (cc *CacheController) respondWithStoreError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, cache_errors.ErrDurableWrite), errors.Is(err, cache_errors.ErrDurableRead):
		util.RespondWithError(c, http.StatusServiceUnavailable, "Durable tier unavailable", err)
	default:
		util.RespondWithError(c, http.StatusInternalServerError, message, err)
	}
}
