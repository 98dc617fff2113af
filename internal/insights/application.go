package insights

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/common/app"
	"github.com/weni-ai/insights/internal/common/cache"
	"github.com/weni-ai/insights/internal/common/database"
	"github.com/weni-ai/insights/internal/common/health"
	"github.com/weni-ai/insights/internal/common/httpclient"
	"github.com/weni-ai/insights/internal/common/observability"
	"github.com/weni-ai/insights/internal/insights/configuration"
	"github.com/weni-ai/insights/internal/insights/executor"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/insights/resources"
	"github.com/weni-ai/insights/internal/insights/server"
	"github.com/weni-ai/insights/internal/insights/service"
	"github.com/weni-ai/insights/internal/upstream/chats"
	"github.com/weni-ai/insights/internal/upstream/growthbook"
	"github.com/weni-ai/insights/internal/upstream/meta"
	"github.com/weni-ai/insights/internal/upstream/vtex"
)

const defaultCleanupInterval = time.Minute

// Serve builds every configured backend and serves the API until ctx is cancelled.
func Serve(ctx context.Context, config configuration.InsightsConfig) error {
	log.Info("Insights api starting")

	startupCompleteCheck := &health.StartupCompleteChecker{}
	healthChecks := health.NewMultiChecker(startupCompleteCheck)
	recorder := observability.NewLogRecorder(log.StandardLogger())

	store, cleanup, err := createStore(config.Cache, healthChecks)
	if err != nil {
		return err
	}
	defer cleanup()

	var sqlExecutor executor.SQLExecutor
	if config.Postgres != nil {
		pool, err := database.OpenPgxPool(ctx, *config.Postgres)
		if err != nil {
			return errors.WithMessage(err, "error opening connection to postgres")
		}
		defer pool.Close()
		sqlExecutor = executor.NewPostgresExecutor(pool)
		healthChecks.Add(health.NewPostgresChecker("chats", pool))
	} else {
		log.Warn("No postgres configured, sql resources are disabled")
	}

	var searchExecutor executor.SearchExecutor
	if config.Elasticsearch != nil {
		headers := http.Header{}
		if config.Elasticsearch.ApiKey != "" {
			headers.Set("Authorization", "ApiKey "+config.Elasticsearch.ApiKey)
		}
		searchExecutor = executor.NewElasticSearchExecutor(httpclient.NewClient(config.HttpClient, httpclient.WithRecorder(recorder, "elasticsearch")), config.Elasticsearch.URL, headers)
	} else {
		log.Warn("No elasticsearch configured, search resources are disabled")
	}

	provider, err := integrations.NewStaticProvider(config.Integrations)
	if err != nil {
		return err
	}

	services := server.Services{
		Queries:      service.NewQueryService(resources.DefaultRegistry(), sqlExecutor, searchExecutor),
		Integrations: provider,
	}

	vtexClient := vtex.NewClient(httpclient.NewClient(config.HttpClient), config.VTEX.MaxPages)
	services.Orders = vtex.NewOrdersService(vtexClient, store, config.VTEX.Cache, recorder)

	if config.Growthbook != nil {
		services.FeatureFlags = growthbook.NewClient(httpclient.NewClient(config.HttpClient), store, *config.Growthbook, recorder)
	}
	if config.Meta != nil {
		metaClient := meta.NewClient(config.HttpClient, *config.Meta)
		services.AbandonedCart = service.NewAbandonedCartService(provider, metaClient, vtexClient, store, config.AbandonedCart.Cache, recorder)
	}
	if config.Chats != nil {
		services.Agents = chats.NewClient(config.HttpClient, *config.Chats, httpclient.WithRecorder(recorder, "chats"))
	}

	apiMux := http.NewServeMux()
	server.NewServer(services).Register(apiMux)
	servers := []*http.Server{{
		Addr:    fmt.Sprintf(":%d", config.HttpPort),
		Handler: server.WithMiddleware(apiMux),
	}}

	metricsMux := apiMux
	if config.MetricsPort != 0 && config.MetricsPort != config.HttpPort {
		metricsMux = http.NewServeMux()
		servers = append(servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", config.MetricsPort),
			Handler: metricsMux,
		})
	}
	metricsMux.Handle("/metrics", promhttp.Handler())
	health.SetupHttpMux(metricsMux, healthChecks)

	startupCompleteCheck.MarkComplete()
	return app.ServeHttp(ctx, config.ShutdownTimeout, servers...)
}

// createStore returns the cache store selected by config, registering a health check where the store is remote.
func createStore(config configuration.CacheConfig, checks *health.MultiChecker) (cache.Store, func(), error) {
	switch config.Store {
	case configuration.CacheStoreRedis:
		if config.Redis == nil {
			return nil, nil, errors.New("cache store is redis but no redis is configured")
		}
		client := redis.NewUniversalClient(config.Redis.AsUniversalOptions())
		checks.Add(health.NewRedisChecker(client))
		return cache.NewRedisStore(client), func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Error closing redis client")
			}
		}, nil
	case configuration.CacheStoreBounded:
		store, err := cache.NewBoundedMemoryStore(config.MemoryStoreSize)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case configuration.CacheStoreMemory, "":
		interval := config.MemoryCleanupInterval
		if interval <= 0 {
			interval = defaultCleanupInterval
		}
		return cache.NewMemoryStore(interval), func() {}, nil
	default:
		return nil, nil, errors.Errorf("unknown cache store %q", config.Store)
	}
}
