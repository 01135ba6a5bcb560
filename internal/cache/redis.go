package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"slippers/internal/models"

	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

var _ OrderCache = (*RedisCache)(nil)

func (r *RedisCache) ttl() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL)/5 + 1))
	return r.baseTTL + jitter
}

func (r *RedisCache) get(ctx context.Context, key string, dst any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// genTTL outlives every data key, so a generation that expires and restarts
// at 0 cannot resurrect a page stored under an earlier 0.
const genTTL = 24 * time.Hour

func (r *RedisCache) version(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s failed: %w", key, err)
	}
	return v, nil
}

func (r *RedisCache) OrderVersion(ctx context.Context, id uint) (int64, error) {
	return r.version(ctx, orderGenKey(id))
}

func (r *RedisCache) GetOrder(ctx context.Context, id uint, version int64) (*models.Order, error) {
	var o models.Order
	if err := r.get(ctx, orderKey(id, version), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *RedisCache) SetOrder(ctx context.Context, o *models.Order, version int64) error {
	return r.set(ctx, orderKey(o.ID, version), o)
}

func (r *RedisCache) ListVersion(ctx context.Context, userID uint) (int64, error) {
	return r.version(ctx, listGenKey(userID))
}

func (r *RedisCache) GetList(ctx context.Context, k ListKey) (*OrderPage, error) {
	var page OrderPage
	if err := r.get(ctx, listKey(k), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (r *RedisCache) SetList(ctx context.Context, k ListKey, page *OrderPage) error {
	return r.set(ctx, listKey(k), page)
}

// Invalidate bumps the generation of the order, of its owner's listings and
// of the admin listings. Entries under older generations expire on their own.
func (r *RedisCache) Invalidate(ctx context.Context, orderID, userID uint) error {
	keys := []string{orderGenKey(orderID), listGenKey(userID), listGenKey(0)}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Incr(ctx, k)
			pipe.Expire(ctx, k, genTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}
