// controller/controllers.go
package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dev-mohitbeniwal/scorecache/service"
)

type Controllers struct {
	Cache *CacheController
}

func InitializeControllers(services *service.Services, gatherer prometheus.Gatherer, warmWindow time.Duration) *Controllers {
	return &Controllers{
		Cache: NewCacheController(services.Invalidation, services.Warming, services.Stats, gatherer, warmWindow),
	}
}
