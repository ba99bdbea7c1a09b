package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// TokenCache caches validated tokens by hash. Get returns (nil, nil) on miss.
type TokenCache interface {
	Get(ctx context.Context, tokenHash string) (*AccessToken, error)
	Set(ctx context.Context, token *AccessToken, ttl time.Duration) error
	Delete(ctx context.Context, tokenHashes ...string) error
}

// LRUTokenCache is an in-process expirable LRU
type LRUTokenCache struct {
	cache *lru.LRU[string, AccessToken]
}

// NewLRUTokenCache creates an LRU holding up to size tokens for at most ttl
func NewLRUTokenCache(size int, ttl time.Duration) *LRUTokenCache {
	return &LRUTokenCache{
		cache: lru.NewLRU[string, AccessToken](size, nil, ttl),
	}
}

// Get retrieves a token from the LRU
func (c *LRUTokenCache) Get(ctx context.Context, tokenHash string) (*AccessToken, error) {
	token, ok := c.cache.Get(tokenHash)
	if !ok {
		return nil, nil
	}
	return &token, nil
}

// Set stores a token; the LRU's own TTL caps ttl
func (c *LRUTokenCache) Set(ctx context.Context, token *AccessToken, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.cache.Add(token.TokenHash, *token)
	return nil
}

// Delete evicts tokens
func (c *LRUTokenCache) Delete(ctx context.Context, tokenHashes ...string) error {
	for _, h := range tokenHashes {
		c.cache.Remove(h)
	}
	return nil
}

// Len returns the number of cached tokens
func (c *LRUTokenCache) Len() int {
	return c.cache.Len()
}

// RedisTokenCache shares cached tokens across instances
type RedisTokenCache struct {
	client *redis.Client
	maxTTL time.Duration
}

// RedisOptions configures the redis connection
type RedisOptions struct {
	URL        string
	Password   string
	DB         int // negative keeps the URL's database
	MaxRetries int
	PoolSize   int
	MaxTTL     time.Duration
}

// NewRedisTokenCache connects to redis and verifies the connection
func NewRedisTokenCache(ctx context.Context, cfg RedisOptions) (*RedisTokenCache, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisTokenCache{
		client: client,
		maxTTL: cfg.MaxTTL,
	}, nil
}

// Client exposes the underlying client for health checks
func (c *RedisTokenCache) Client() *redis.Client {
	return c.client
}

func tokenKey(tokenHash string) string {
	return fmt.Sprintf("token:%s", tokenHash)
}

// Get retrieves a token from redis
func (c *RedisTokenCache) Get(ctx context.Context, tokenHash string) (*AccessToken, error) {
	key := tokenKey(tokenHash)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var token AccessToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	token.TokenHash = tokenHash

	return &token, nil
}

// Set stores a token for ttl, capped at the configured maximum
func (c *RedisTokenCache) Set(ctx context.Context, token *AccessToken, ttl time.Duration) error {
	if c.maxTTL > 0 && ttl > c.maxTTL {
		ttl = c.maxTTL
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	return c.client.Set(ctx, tokenKey(token.TokenHash), data, ttl).Err()
}

// Delete evicts tokens
func (c *RedisTokenCache) Delete(ctx context.Context, tokenHashes ...string) error {
	if len(tokenHashes) == 0 {
		return nil
	}
	keys := make([]string, len(tokenHashes))
	for i, h := range tokenHashes {
		keys[i] = tokenKey(h)
	}
	return c.client.Del(ctx, keys...).Err()
}

// Close closes the redis connection
func (c *RedisTokenCache) Close() error {
	return c.client.Close()
}
