package configuration

import (
	"time"

	"github.com/weni-ai/insights/internal/common/cache"
	commonconfig "github.com/weni-ai/insights/internal/common/config"
	"github.com/weni-ai/insights/internal/common/database"
	"github.com/weni-ai/insights/internal/common/httpclient"
	"github.com/weni-ai/insights/internal/common/logging"
	"github.com/weni-ai/insights/internal/insights/integrations"
	"github.com/weni-ai/insights/internal/upstream/chats"
	"github.com/weni-ai/insights/internal/upstream/growthbook"
	"github.com/weni-ai/insights/internal/upstream/meta"
)

const (
	CacheStoreRedis   = "redis"
	CacheStoreMemory  = "memory"
	CacheStoreBounded = "bounded"
)

type InsightsConfig struct {
	Logging logging.Config
	// Port the metrics API listens on
	HttpPort uint16 `validate:"required"`
	// Port prometheus metrics and the health endpoint are exposed on. Zero serves them on HttpPort.
	MetricsPort uint16
	// How long in-flight requests get to finish once a shutdown signal is received
	ShutdownTimeout time.Duration `validate:"gt=0"`

	Cache CacheConfig

	// SQL resources are disabled when unset
	Postgres *database.PostgresConfig
	// Search resources are disabled when unset
	Elasticsearch *ElasticsearchConfig

	// Retry policy shared by every upstream REST call
	HttpClient httpclient.Config

	Growthbook *growthbook.Config
	Meta       *meta.Config
	Chats      *chats.Config
	VTEX       VTEXConfig

	AbandonedCart AbandonedCartConfig

	// Per project integration settings, keyed by project uuid
	Integrations map[string]integrations.Project `validate:"dive"`
}

type CacheConfig struct {
	Store string `validate:"oneof=redis memory bounded"`
	// Required when Store is redis
	Redis *commonconfig.RedisConfig `validate:"required_if=Store redis"`
	// Maximum number of entries kept by the bounded store
	MemoryStoreSize int `validate:"required_if=Store bounded"`
	// How often expired entries are purged from the memory store
	MemoryCleanupInterval time.Duration
}

type ElasticsearchConfig struct {
	URL    string `validate:"required,url"`
	ApiKey string
}

type VTEXConfig struct {
	// Upper bound on order pages fetched per request
	MaxPages int `validate:"gte=0"`
	Cache    cache.TierConfig
}

type AbandonedCartConfig struct {
	Cache cache.TierConfig
}
