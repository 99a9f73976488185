// Package cache provides caching for catalog query results with circuit
// breaker protection and an in-memory fallback.
//
// Values are serialized with msgpack. The Redis implementation degrades to
// an open circuit after repeated failures so catalog queries fall through
// to the in-memory index instead of blocking.
//
// Example usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	c, err := cache.NewRedisCache(cache.RedisConfig{Client: client})
//	defer c.Close()
//
//	c.Set(ctx, "key", ids, 30*time.Second)
//
//	var ids []int64
//	err := c.Get(ctx, "key", &ids)
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrInvalidKey       = errors.New("invalid cache key: key cannot be empty")
	ErrInvalidTTL       = errors.New("invalid ttl: must be positive")
)

// Cache defines the interface for caching implementations
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error
	Stats() Stats

	Close() error
}

// Stats provides cache metrics
type Stats struct {
	Hits        uint64
	Misses      uint64
	Sets        uint64
	Deletes     uint64
	Errors      uint64
	HitRate     float64
	CircuitOpen bool
}

type cacheMetrics struct {
	hits    uint64
	misses  uint64
	sets    uint64
	deletes uint64
	errors  uint64
}

func (m *cacheMetrics) stats(circuitOpen bool) Stats {
	hits := atomic.LoadUint64(&m.hits)
	misses := atomic.LoadUint64(&m.misses)
	total := hits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:        hits,
		Misses:      misses,
		Sets:        atomic.LoadUint64(&m.sets),
		Deletes:     atomic.LoadUint64(&m.deletes),
		Errors:      atomic.LoadUint64(&m.errors),
		HitRate:     hitRate,
		CircuitOpen: circuitOpen,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	maxFailures  uint32
	resetTimeout time.Duration
	failures     uint32
	lastFailTime time.Time
	state        uint32 // 0=closed, 1=open, 2=half-open
	mu           sync.RWMutex
}

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(maxFailures uint32, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        circuitClosed,
	}
}

// Call executes a function with circuit breaker protection. A redis.Nil
// result counts as success; a missing key is not a backend failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return ErrCacheUnavailable
	}

	err := fn()

	if err != nil && err != redis.Nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) canExecute() bool {
	switch atomic.LoadUint32(&cb.state) {
	case circuitClosed:
		return true
	case circuitOpen:
		cb.mu.RLock()
		elapsed := time.Since(cb.lastFailTime)
		cb.mu.RUnlock()

		if elapsed > cb.resetTimeout {
			atomic.StoreUint32(&cb.state, circuitHalfOpen)
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.maxFailures {
		atomic.StoreUint32(&cb.state, circuitOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if atomic.LoadUint32(&cb.state) == circuitHalfOpen {
		cb.failures = 0
		atomic.StoreUint32(&cb.state, circuitClosed)
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	return atomic.LoadUint32(&cb.state) == circuitOpen
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > 512 {
		return fmt.Errorf("cache key too long: max 512 characters, got %d", len(key))
	}
	return nil
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Client       *redis.Client
	MaxFailures  uint32
	ResetTimeout time.Duration
}

// RedisCache implements Cache on Redis with circuit breaker protection
type RedisCache struct {
	client         *redis.Client
	circuitBreaker *CircuitBreaker
	metrics        *cacheMetrics
}

// NewRedisCache creates a Redis cache and verifies the connection
func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := config.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}

	return &RedisCache{
		client:         config.Client,
		circuitBreaker: NewCircuitBreaker(config.MaxFailures, config.ResetTimeout),
		metrics:        &cacheMetrics{},
	}, nil
}

// Get retrieves and unmarshals a value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if dest == nil {
		return errors.New("destination cannot be nil")
	}

	var data []byte
	err := c.circuitBreaker.Call(func() error {
		var err error
		data, err = c.client.Get(ctx, key).Bytes()
		return err
	})

	if err == redis.Nil {
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		if errors.Is(err, ErrCacheUnavailable) {
			return err
		}
		return fmt.Errorf("cache get failed: %w", err)
	}

	if err := msgpack.Unmarshal(data, dest); err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	atomic.AddUint64(&c.metrics.hits, 1)
	return nil
}

// Set marshals and stores a value in cache
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if value == nil {
		return errors.New("value cannot be nil")
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.circuitBreaker.Call(func() error {
		return c.client.Set(ctx, key, data, ttl).Err()
	})

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("cache set failed: %w", err)
	}

	atomic.AddUint64(&c.metrics.sets, 1)
	return nil
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	err := c.circuitBreaker.Call(func() error {
		return c.client.Del(ctx, key).Err()
	})

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("cache delete failed: %w", err)
	}

	atomic.AddUint64(&c.metrics.deletes, 1)
	return nil
}

// DeletePattern deletes all keys matching a pattern
func (c *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	var keys []string

	err := c.circuitBreaker.Call(func() error {
		for {
			var scanKeys []string
			var err error
			scanKeys, cursor, err = c.client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return err
			}

			keys = append(keys, scanKeys...)

			if cursor == 0 {
				break
			}
		}

		if len(keys) > 0 {
			pipe := c.client.Pipeline()
			for _, key := range keys {
				pipe.Del(ctx, key)
			}
			_, err := pipe.Exec(ctx)
			return err
		}

		return nil
	})

	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("cache delete pattern failed: %w", err)
	}

	atomic.AddUint64(&c.metrics.deletes, uint64(len(keys)))
	return nil
}

// Ping checks Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats returns cache statistics
func (c *RedisCache) Stats() Stats {
	return c.metrics.stats(c.circuitBreaker.IsOpen())
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// InMemoryCache is an in-memory Cache for testing or single-node use
type InMemoryCache struct {
	data      map[string]cacheItem
	mu        sync.RWMutex
	metrics   *cacheMetrics
	stopCh    chan struct{}
	closeOnce sync.Once
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	cache := &InMemoryCache{
		data:    make(map[string]cacheItem),
		metrics: &cacheMetrics{},
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

// cleanup removes expired items periodically until Close.
func (c *InMemoryCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.data {
				if now.After(item.expiration) {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// Get retrieves a value from in-memory cache
func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	item, exists := c.data[key]
	c.mu.RUnlock()

	if !exists {
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if time.Now().After(item.expiration) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		atomic.AddUint64(&c.metrics.misses, 1)
		return ErrCacheMiss
	}

	if err := msgpack.Unmarshal(item.value, dest); err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	atomic.AddUint64(&c.metrics.hits, 1)
	return nil
}

// Set stores a value in in-memory cache
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		atomic.AddUint64(&c.metrics.errors, 1)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.mu.Lock()
	c.data[key] = cacheItem{
		value:      data,
		expiration: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	atomic.AddUint64(&c.metrics.sets, 1)
	return nil
}

// Delete removes a value from in-memory cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()

	atomic.AddUint64(&c.metrics.deletes, 1)
	return nil
}

// DeletePattern deletes all keys matching a glob pattern
func (c *InMemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deleted uint64
	for key := range c.data {
		if matchPattern(key, pattern) {
			delete(c.data, key)
			deleted++
		}
	}

	atomic.AddUint64(&c.metrics.deletes, deleted)
	return nil
}

// Ping always returns nil for in-memory cache
func (c *InMemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Stats returns cache statistics
func (c *InMemoryCache) Stats() Stats {
	return c.metrics.stats(false)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *InMemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	return nil
}

// matchPattern performs glob-style pattern matching.
// Supports: * (wildcard), ? (single char), and literal matching
func matchPattern(str, pattern string) bool {
	if str == pattern || pattern == "*" {
		return true
	}

	return globMatch(str, pattern)
}

// globMatch implements recursive glob matching
func globMatch(str, pattern string) bool {
	sLen, pLen := len(str), len(pattern)
	si, pi := 0, 0
	starIdx, matchIdx := -1, 0

	for si < sLen {
		if pi < pLen && (pattern[pi] == '?' || pattern[pi] == str[si]) {
			si++
			pi++
		} else if pi < pLen && pattern[pi] == '*' {
			starIdx = pi
			matchIdx = si
			pi++
		} else if starIdx != -1 {
			pi = starIdx + 1
			matchIdx++
			si = matchIdx
		} else {
			return false
		}
	}

	for pi < pLen {
		if pattern[pi] != '*' {
			return false
		}
		pi++
	}

	return true
}
