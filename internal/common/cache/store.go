package cache

import (
	"sync"
	"time"

	"github.com/go-redis/redis"
	lru "github.com/hashicorp/golang-lru"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
)

// Store is the key/value contract the cache-aside layer needs. A missing key is ("", false, nil).
type Store interface {
	Get(key string) (string, bool, error)
	Set(key string, value string, ttl time.Duration) error
}

type RedisStore struct {
	db redis.UniversalClient
}

func NewRedisStore(db redis.UniversalClient) *RedisStore {
	return &RedisStore{db: db}
}

func (s *RedisStore) Get(key string) (string, bool, error) {
	value, err := s.db.Get(key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(key string, value string, ttl time.Duration) error {
	return errors.WithStack(s.db.Set(key, value, ttl).Err())
}

// MemoryStore keeps entries in process. Expired entries are swept every cleanupInterval.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	value, ok := s.c.Get(key)
	if !ok {
		return "", false, nil
	}
	return value.(string), true, nil
}

func (s *MemoryStore) Set(key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.c.Set(key, value, ttl)
	return nil
}

// BoundedMemoryStore is an in-process store that holds at most size entries, evicting the least recently used.
type BoundedMemoryStore struct {
	entries *lru.Cache
	now     func() time.Time
	mu      sync.Mutex
}

type boundedEntry struct {
	value     string
	expiresAt time.Time
}

func NewBoundedMemoryStore(size int) (*BoundedMemoryStore, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &BoundedMemoryStore{entries: entries, now: time.Now}, nil
}

func (s *BoundedMemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.entries.Get(key)
	if !ok {
		return "", false, nil
	}
	entry := raw.(boundedEntry)
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.entries.Remove(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *BoundedMemoryStore) Set(key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := boundedEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries.Add(key, entry)
	return nil
}
