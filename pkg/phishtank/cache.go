package phishtank

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is a cached PhishTank verdict for a single URL. A zero-valued
// record (beyond URL) means the lookup failed or the URL is unknown and the
// caller should treat the URL as unverified.
type Record struct {
	URL            string `json:"url"`
	InDatabase     bool   `json:"in_database"`
	PhishID        string `json:"phish_id,omitempty"`
	Verified       bool   `json:"verified"`
	SubmissionTime string `json:"submission_time,omitempty"`
	VerifiedTime   string `json:"verified_time,omitempty"`
}

// IsPhish reports whether PhishTank confirms this URL as a verified phish.
func (r *Record) IsPhish() bool {
	return r != nil && r.InDatabase && r.Verified
}

// Clock abstracts time for expiry decisions so tests can control it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// Cache stores PhishTank records keyed by URL hash with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, bool, error)
	Set(ctx context.Context, key string, record *Record) error
}

// MemoryCache is an in-process Cache. Entries expire lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   Clock
}

type memoryEntry struct {
	record  Record
	expires time.Time
}

// NewMemoryCache creates a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration, clock Clock) *MemoryCache {
	if clock == nil {
		clock = SystemClock()
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Record, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.clock.Now().After(entry.expires) {
		c.evictIfExpired(key)
		return nil, false, nil
	}
	record := entry.record
	return &record, true, nil
}

// evictIfExpired deletes key only if the stored entry is still expired; a
// concurrent Set may have refreshed it since the lock-free read.
func (c *MemoryCache) evictIfExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok && c.clock.Now().After(entry.expires) {
		delete(c.entries, key)
	}
}

func (c *MemoryCache) Set(_ context.Context, key string, record *Record) error {
	if record == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{record: *record, expires: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries currently stored, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RedisCache stores records in Redis so verdicts survive restarts and are
// shared across replicas. Expiry is delegated to the server.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "phishtank:"

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisCacheFromURL connects to Redis at rawURL (redis://host:port/db).
func NewRedisCacheFromURL(rawURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Record, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry for %s: %w", key, err)
	}
	return &record, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, record *Record) error {
	if record == nil {
		return nil
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection, for readiness checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
