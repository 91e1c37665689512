package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/scorecache/audit"
	"github.com/dev-mohitbeniwal/scorecache/cache"
	"github.com/dev-mohitbeniwal/scorecache/config"
	"github.com/dev-mohitbeniwal/scorecache/controller"
	"github.com/dev-mohitbeniwal/scorecache/dao"
	"github.com/dev-mohitbeniwal/scorecache/db"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/metrics"
	"github.com/dev-mohitbeniwal/scorecache/router"
	"github.com/dev-mohitbeniwal/scorecache/service"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Initialize configuration
	flags := pflag.NewFlagSet("scorecache", pflag.ExitOnError)
	config.BindFlags(flags)
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load("", flags)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	if err := logger.InitLogger(cfg.Log.Dir, cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	redisClient, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}

	// Initialize Neo4j
	neo4jClient, err := db.NewNeo4j(ctx, cfg.Neo4j)
	if err != nil {
		logger.Fatal("Failed to initialize Neo4j", zap.Error(err))
	}

	keys := fingerprint.NewGenerator(cfg.Cache.Namespace)
	ephemeral := cache.NewEphemeralStore(redisClient, keys, cache.Options{
		OpTimeout:            cfg.Cache.OpTimeout,
		CompressionThreshold: cfg.Cache.CompressionThreshold,
		ScanBatchSize:        cfg.Cache.ScanBatchSize,
		ScanMaxRounds:        cfg.Cache.ScanMaxRounds,
	})
	records := dao.NewCacheRecordDAO(neo4jClient, dao.CacheRecordOptions{
		ReadTimeout:  cfg.Neo4j.ReadTimeout,
		WriteTimeout: cfg.Neo4j.WriteTimeout,
		Retention:    cfg.Cache.RetentionWindow,
	})
	if err := records.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure durable schema", zap.Error(err))
	}

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)

	if cfg.Elasticsearch.Enabled {
		auditRepository, err := audit.NewElasticsearchRepository(cfg.Elasticsearch.URL, cfg.Elasticsearch.Index)
		if err != nil {
			logger.Fatal("Failed to initialize audit repository", zap.Error(err))
		}
		audit.Subscribe(eventBus, audit.NewService(auditRepository))
	}

	// Initialize services
	services, err := service.InitializeServices(cfg, keys, ephemeral, records, eventBus)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	exporter := metrics.NewExporter()
	registry := prometheus.NewRegistry()
	registry.MustRegister(exporter, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	scheduler := util.NewScheduler()
	if err := scheduler.Add(util.Job{
		Name:       "stats",
		Interval:   cfg.Stats.Interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			exporter.Update(services.Stats.Snapshot(ctx, cfg.Stats.Window))
			return nil
		},
	}); err != nil {
		logger.Fatal("Failed to schedule stats job", zap.Error(err))
	}
	if cfg.Warming.Enabled {
		if err := scheduler.Add(util.Job{
			Name:     "warming",
			Interval: cfg.Warming.Interval,
			Run: func(ctx context.Context) error {
				if stats := services.Warming.WarmRecent(ctx, cfg.Warming.Window); stats.Error != "" {
					return errors.New(stats.Error)
				}
				return nil
			},
		}); err != nil {
			logger.Fatal("Failed to schedule warming job", zap.Error(err))
		}
	}
	scheduler.Start(ctx)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	controllers := controller.InitializeControllers(services, registry, cfg.Warming.Window)
	engine := router.SetupRouter(controllers, ephemeral, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	err = server.Shutdown(shutdownCtx)
	scheduler.Stop()
	err = multierr.Combine(
		err,
		services.Scores.Close(shutdownCtx),
		eventBus.Close(shutdownCtx),
		neo4jClient.Close(shutdownCtx),
		db.CloseRedis(redisClient),
	)
	cancel()
	if err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		return
	}
	logger.Info("Server exiting")
}
