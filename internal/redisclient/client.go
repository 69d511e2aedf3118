package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/rate_limit.lua
var rateLimitScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb             *redis.Client
	rateLimitScript *redis.Script
	releaseScript   *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:             rdb,
		rateLimitScript: redis.NewScript(rateLimitScript),
		releaseScript:   redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ProductSnapshot is the cached price and availability of a product.
type ProductSnapshot struct {
	Price     int64
	Currency  string
	Available int
}

// CacheProduct stores a product snapshot for the cart fast path.
func (c *Client) CacheProduct(ctx context.Context, productID int64, snap ProductSnapshot, ttl time.Duration) error {
	key := fmt.Sprintf("product:%d", productID)

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, "price", snap.Price)
	pipe.HSet(ctx, key, "currency", snap.Currency)
	pipe.HSet(ctx, key, "available", snap.Available)
	pipe.Expire(ctx, key, ttl)

	_, err := pipe.Exec(ctx)
	return err
}

// GetProduct retrieves a cached product snapshot. The second return value is
// false on a cache miss.
func (c *Client) GetProduct(ctx context.Context, productID int64) (ProductSnapshot, bool, error) {
	key := fmt.Sprintf("product:%d", productID)

	result, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return ProductSnapshot{}, false, err
	}
	if len(result) == 0 {
		return ProductSnapshot{}, false, nil
	}

	price, err := strconv.ParseInt(result["price"], 10, 64)
	if err != nil {
		return ProductSnapshot{}, false, fmt.Errorf("corrupt product cache for %d: %w", productID, err)
	}
	available, err := strconv.Atoi(result["available"])
	if err != nil {
		return ProductSnapshot{}, false, fmt.Errorf("corrupt product cache for %d: %w", productID, err)
	}

	return ProductSnapshot{
		Price:     price,
		Currency:  result["currency"],
		Available: available,
	}, true, nil
}

// InvalidateProduct drops a cached snapshot after stock changes.
func (c *Client) InvalidateProduct(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf("product:%d", productID)).Err()
}

// AcquireOrderLock takes the per-order mutation lock. The business cart lock
// lives on the order row; this lock only serializes concurrent requests
// touching the same order. Returns false when the lock is held elsewhere.
func (c *Client) AcquireOrderLock(ctx context.Context, orderID int64, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("orderlock:%d", orderID), token, ttl).Result()
}

// ReleaseOrderLock releases the per-order mutation lock, but only when the
// token still matches (the compare-and-delete runs as a Lua script).
func (c *Client) ReleaseOrderLock(ctx context.Context, orderID int64, token string) error {
	key := fmt.Sprintf("orderlock:%d", orderID)

	_, err := c.releaseScript.Run(ctx, c.rdb, []string{key}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// AllowGuestView counts a guest-token view attempt against a fixed window and
// reports whether it is still within the limit. Used to slow token guessing.
func (c *Client) AllowGuestView(ctx context.Context, viewerKey string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("guestview:%s", viewerKey)

	result, err := c.rateLimitScript.Run(ctx, c.rdb, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return allowed == 1, nil
}
