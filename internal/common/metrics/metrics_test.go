package metrics

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCacheEvent(t *testing.T) {
	counter := Get().cacheEvents.With(map[string]string{"cache": "test_cache_events", "tier": "short", "event": "hit"})
	before := testutil.ToFloat64(counter)

	Get().RecordCacheEvent("test_cache_events", CacheTierShort, CacheEventHit)
	Get().RecordCacheEvent("test_cache_events", CacheTierShort, CacheEventHit)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecordException(t *testing.T) {
	counter := Get().exceptions.With(map[string]string{"source": "test_exceptions"})
	before := testutil.ToFloat64(counter)

	Get().RecordException("test_exceptions")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordQuery(t *testing.T) {
	Get().RecordQuery("rooms", "count", nil, 10*time.Millisecond)
	Get().RecordQuery("rooms", "count", errors.New("boom"), 10*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(Get().queryDuration, InsightsMetricsPrefix+"query_duration_seconds"))
}
