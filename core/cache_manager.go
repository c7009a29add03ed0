package core

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheManager is a two tier cache: L1 in process, L2 in Redis when configured.
// Values are stored as JSON so both tiers hold the same bytes.
type CacheManager struct {
	l1              sync.Map      // key -> *cacheEntry
	rdb             *redis.Client // nil when Redis is disabled or unreachable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

type CacheMetrics struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	EntryCount int64 `json:"entry_count"`
	Redis      bool  `json:"redis"`
}

// NewCacheManager builds the cache. An empty redisURL disables L2.
func NewCacheManager(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) *CacheManager {
	cm := &CacheManager{
		ttl:             ttl,
		maxEntries:      maxEntries,
		cleanupInterval: cleanupInterval,
		stop:            make(chan struct{}),
	}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
				_ = rdb.Close()
			} else {
				cm.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	slog.Info("cache: initialized",
		slog.Duration("ttl", ttl),
		slog.Bool("redis", cm.rdb != nil),
		slog.Int("max_entries", maxEntries))

	go cm.cleanupLoop()
	return cm
}

// CacheKey builds a deterministic key from parts.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("yts:%x", hash[:12])
}

// Get decodes the cached value for key into out. L1 first, then L2; an L2
// hit repopulates L1.
func (cm *CacheManager) Get(ctx context.Context, key string, out any) bool {
	if cm == nil {
		return false
	}

	if val, ok := cm.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) && json.Unmarshal(entry.data, out) == nil {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			cm.hits.Add(1)
			return true
		}
		cm.l1.Delete(key)
	}

	if cm.rdb != nil {
		data, err := cm.rdb.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(data, out) == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			cm.hits.Add(1)
			cm.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(cm.ttl)})
			return true
		}
	}

	cm.misses.Add(1)
	return false
}

// Set stores v in both tiers.
func (cm *CacheManager) Set(ctx context.Context, key string, v any) {
	if cm == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Debug("cache: marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}

	cm.evictIfNeeded()
	cm.l1.Store(key, &cacheEntry{data: data, expiresAt: time.Now().Add(cm.ttl)})

	if cm.rdb != nil {
		if err := cm.rdb.Set(ctx, key, data, cm.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Delete removes key from both tiers.
func (cm *CacheManager) Delete(ctx context.Context, key string) {
	if cm == nil {
		return
	}
	cm.l1.Delete(key)
	if cm.rdb != nil {
		cm.rdb.Del(ctx, key)
	}
}

func (cm *CacheManager) GetMetrics() CacheMetrics {
	if cm == nil {
		return CacheMetrics{}
	}
	return CacheMetrics{
		Hits:       cm.hits.Load(),
		Misses:     cm.misses.Load(),
		Evictions:  cm.evictions.Load(),
		EntryCount: int64(cm.count()),
		Redis:      cm.rdb != nil,
	}
}

func (cm *CacheManager) count() int {
	n := 0
	cm.l1.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// evictIfNeeded drops expired entries first, then the entries closest to
// expiry, until L1 is below maxEntries.
func (cm *CacheManager) evictIfNeeded() {
	if cm.maxEntries <= 0 {
		return
	}
	count := cm.count()
	if count < cm.maxEntries {
		return
	}

	now := time.Now()
	cm.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			cm.l1.Delete(key)
			cm.evictions.Add(1)
			count--
		}
		return count >= cm.maxEntries
	})

	for count >= cm.maxEntries {
		var oldestKey any
		oldestAt := now.Add(100 * 365 * 24 * time.Hour)
		cm.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			break
		}
		cm.l1.Delete(oldestKey)
		cm.evictions.Add(1)
		count--
	}
}

func (cm *CacheManager) cleanupLoop() {
	interval := cm.cleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-cm.stop:
			return
		case <-ticker.C:
			now := time.Now()
			cm.l1.Range(func(key, val any) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					cm.l1.Delete(key)
				}
				return true
			})
		}
	}
}

// Close stops the cleanup loop and the Redis client.
func (cm *CacheManager) Close() {
	if cm == nil {
		return
	}
	cm.stopOnce.Do(func() {
		close(cm.stop)
		if cm.rdb != nil {
			_ = cm.rdb.Close()
		}
		slog.Info("cache: closed")
	})
}
