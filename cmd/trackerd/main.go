// Command trackerd runs the event-tracking core's HTTP server: it wires
// Postgres-backed storage, Redis-backed caching, NATS-backed destination
// dispatch, the profile synchronizer, and the pipeline orchestrator
// behind a single POST /track ingestion endpoint (plus GET /health).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/tracardi/tracker-core/internal/cache"
	"github.com/tracardi/tracker-core/internal/config"
	"github.com/tracardi/tracker-core/internal/destination"
	"github.com/tracardi/tracker-core/internal/domain"
	"github.com/tracardi/tracker-core/internal/httpapi"
	"github.com/tracardi/tracker-core/internal/logger"
	"github.com/tracardi/tracker-core/internal/merger"
	"github.com/tracardi/tracker-core/internal/middleware"
	"github.com/tracardi/tracker-core/internal/rules"
	"github.com/tracardi/tracker-core/internal/segment"
	"github.com/tracardi/tracker-core/internal/storage"
	"github.com/tracardi/tracker-core/internal/sync"
	"github.com/tracardi/tracker-core/internal/tracker"
	"github.com/tracardi/tracker-core/internal/validator"
)

func main() {
	cfg := config.Load()
	logger.Initialize(getEnv("LOG_LEVEL", "info"), getEnv("LOG_PRETTY", "false") == "true")

	log.Println("Starting tracker-core...")

	store := mustConnectStorage(cfg)
	defer store.Close()

	log.Println("Running storage migrations...")
	if err := store.Migrate(); err != nil {
		log.Fatalf("Failed to run storage migrations: %v", err)
	}

	redisCache := mustConnectCache(cfg)
	defer redisCache.Close()

	cacheStore := cache.NewStore(redisCache, cache.TTLs{
		Session:  cfg.CacheSessionTTL,
		Source:   cfg.CacheSourceTTL,
		EventTag: cfg.CacheEventTagTTL,
		Flow:     cfg.CacheFlowTTL,
		Segment:  cfg.CacheSegmentTTL,
		Rule:     cfg.CacheRuleTTL,
	})

	synchronizer := sync.New(redisCache, cfg.SyncProfileTracksWait, cfg.SyncProfileTracksMaxRepeats)

	publisher, err := destination.NewPublisher(destination.Config{URL: cfg.NATSUrl})
	if err != nil {
		log.Fatalf("Failed to initialize destination publisher: %v", err)
	}
	defer publisher.Close()

	schemas := validator.NewSchemaRegistry()

	profileMerger := merger.New(profileLookup(store), 1000)

	tr := tracker.New(tracker.Deps{
		Storage:      store,
		Synchronizer: synchronizer,
		Rules:        rules.Default{},
		Segment:      segment.Default{},
		Merger:       profileMerger,
		Schemas:      schemas,
		Destination:  publisher,

		LoadSource:     tracker.NewSourceLoader(store, cacheStore),
		LoadProfile:    tracker.NewProfileLoader(store),
		LoadSession:    tracker.NewSessionLoader(store, cacheStore),
		CorrectSession: tracker.NewSessionCorrector(store),
		SessionExists:  tracker.NewSessionExister(store),
		LoadRules:      tracker.NewRuleLoader(store, cacheStore),
		LoadSegments:   tracker.NewSegmentLoader(store, cacheStore),
		LoadEventTags:  tracker.NewEventTagLoader(store, cacheStore),
	}, tracker.Config{TrackDebug: cfg.TrackDebug})

	housekeeper := startHousekeeping(redisCache)
	defer housekeeper.Stop()

	router := newRouter(tr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Printf("tracker-core listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	waitForShutdown(srv)
}

// newRouter assembles the gin engine and its middleware chain, then
// registers the ingestion endpoint.
func newRouter(tr *tracker.Tracker) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(gin.Recovery())
	router.Use(middleware.StructuredLoggerWithConfigFunc(middleware.DefaultStructuredLoggerConfig()))
	router.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	router.Use(middleware.DefaultSizeLimiter())

	allowedBridges := splitCSV(getEnv("ALLOWED_BRIDGES", "rest"))
	httpapi.New(tr, allowedBridges).RegisterRoutes(router)

	return router
}

// startHousekeeping registers the periodic cache-stats sweep. Redis
// already expires cache/lock keys via TTL on its own, so there is
// nothing to reap by hand; the cron job's job is observability —
// surfacing pool/hit/miss stats on a fixed cadence rather than only on
// demand.
func startHousekeeping(c *cache.Cache) *cron.Cron {
	sched := cron.New()
	interval := getEnv("HOUSEKEEPING_CRON", "@every 5m")

	_, err := sched.AddFunc(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		stats, err := c.GetStats(ctx)
		if err != nil {
			logger.Cache().Warn().Err(err).Msg("housekeeping: failed to collect cache stats")
			return
		}
		logger.Cache().Info().Fields(toLogFields(stats)).Msg("housekeeping: cache stats")
	})
	if err != nil {
		log.Fatalf("Failed to register housekeeping job: %v", err)
	}

	sched.Start()
	return sched
}

func toLogFields(stats map[string]string) map[string]any {
	out := make(map[string]any, len(stats))
	for k, v := range stats {
		out[k] = v
	}
	return out
}

// profileLookup adapts storage's JSONB trait query into the Profile
// Merger's Lookup contract.
func profileLookup(store *storage.Store) merger.Lookup {
	return func(ctx context.Context, mergeBy map[string]any, excludeID string, limit int) ([]*domain.Profile, error) {
		docs, err := store.FindByTraits(ctx, storage.IndexProfile, mergeBy, excludeID, limit)
		if err != nil {
			return nil, err
		}

		profiles := make([]*domain.Profile, 0, len(docs))
		for _, doc := range docs {
			var p domain.Profile
			if err := json.Unmarshal(doc, &p); err != nil {
				return nil, fmt.Errorf("decoding candidate profile: %w", err)
			}
			profiles = append(profiles, &p)
		}
		return profiles, nil
	}
}

func mustConnectStorage(cfg *config.Config) *storage.Store {
	host, port, err := net.SplitHostPort(cfg.StorageHost)
	if err != nil {
		log.Fatalf("Invalid STORAGE_HOST %q: %v", cfg.StorageHost, err)
	}

	log.Println("Connecting to storage...")
	store, err := storage.New(storage.Config{
		Host:     host,
		Port:     port,
		User:     getEnv("STORAGE_USER", "tracardi"),
		Password: getEnv("STORAGE_PASSWORD", "tracardi"),
		DBName:   getEnv("STORAGE_DB_NAME", "tracardi"),
		SSLMode:  getEnv("STORAGE_SSL_MODE", "disable"),
	})
	if err != nil {
		log.Fatalf("Failed to connect to storage: %v", err)
	}
	return store
}

func mustConnectCache(cfg *config.Config) *cache.Cache {
	host, port, err := net.SplitHostPort(cfg.RedisHost)
	if err != nil {
		log.Fatalf("Invalid REDIS_HOST %q: %v", cfg.RedisHost, err)
	}

	log.Println("Connecting to cache...")
	c, err := cache.NewCache(cache.Config{
		Host:     host,
		Port:     port,
		Password: cfg.RedisPassword,
		Enabled:  getEnv("REDIS_ENABLED", "true") == "true",
	})
	if err != nil {
		log.Fatalf("Failed to connect to cache: %v", err)
	}
	return c
}

func waitForShutdown(srv *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Printf("Received shutdown signal: %v", sig)
	log.Println("Starting graceful shutdown...")

	shutdownTimeout := 30 * time.Second
	if timeoutEnv := os.Getenv("SHUTDOWN_TIMEOUT"); timeoutEnv != "" {
		if duration, err := time.ParseDuration(timeoutEnv); err == nil {
			shutdownTimeout = duration
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	} else {
		log.Println("Shutdown complete")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
