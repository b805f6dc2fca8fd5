// Package cache keeps resolved short links in Redis so redirects can skip the
// database lookup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Shortly-Backend/internal/config"
	"Shortly-Backend/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "link:"

// entry is the cached projection of a link. Click counts are never cached.
// UpdatedAt is in Unix microseconds and versions the entry.
type entry struct {
	ID          int64  `json:"id"`
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	UpdatedAt   int64  `json:"updated_at"`
}

// setIfNewer writes ARGV[1] unless the key holds an entry whose updated_at is
// later than ARGV[2]. ARGV[3] is the TTL in milliseconds, 0 for none.
var setIfNewer = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  local ok, decoded = pcall(cjson.decode, current)
  if ok and type(decoded) == 'table' then
    local version = tonumber(decoded.updated_at)
    if version and version > tonumber(ARGV[2]) then
      return 0
    end
  end
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisCache implements service.LinkCache on top of go-redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection with PING.
func NewRedisClient(ctx context.Context, cfg *config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func New(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (c *RedisCache) Get(ctx context.Context, shortCode string) (*domain.Link, bool, error) {
	data, err := c.client.Get(ctx, key(shortCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached link: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// a corrupt entry is treated as a miss and dropped
		c.log.Warn("dropping malformed cache entry", zap.String("short_code", shortCode), zap.Error(err))
		_ = c.client.Del(ctx, key(shortCode)).Err()
		return nil, false, nil
	}

	return &domain.Link{
		ID:          e.ID,
		ShortCode:   e.ShortCode,
		OriginalURL: e.OriginalURL,
		UpdatedAt:   time.UnixMicro(e.UpdatedAt),
	}, true, nil
}

// Set caches link unless Redis already holds a version with a later UpdatedAt,
// so a resolve that read the row before an update cannot overwrite the update.
func (c *RedisCache) Set(ctx context.Context, link *domain.Link) error {
	version := link.UpdatedAt.UnixMicro()
	data, err := json.Marshal(entry{
		ID:          link.ID,
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		UpdatedAt:   version,
	})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	stored, err := setIfNewer.Run(ctx, c.client, []string{key(link.ShortCode)}, data, version, c.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}
	if stored == 0 {
		c.log.Debug("kept newer cached link", zap.String("short_code", link.ShortCode))
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, shortCode string) error {
	if err := c.client.Del(ctx, key(shortCode)).Err(); err != nil {
		return fmt.Errorf("failed to evict cached link: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func key(shortCode string) string {
	return keyPrefix + shortCode
}
