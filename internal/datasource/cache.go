package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

// CacheConfig 跨任务共享的查询缓存配置
type CacheConfig struct {
	L1MaxCost     int64
	L1NumCounters int64
	TTL           time.Duration
	KeyPrefix     string
}

// CachedLookup 两级缓存：L1 ristretto，L2 redis（可选）
//
// 失败结果不缓存。同名并发查询经 singleflight 合并。
type CachedLookup struct {
	next   Lookup
	l1     *ristretto.Cache
	l2     *redis.Client
	ttl    time.Duration
	prefix string
	sf     singleflight.Group
	stats  CacheStats
}

// CacheStats 缓存命中统计
type CacheStats struct {
	L1Hits int64
	L2Hits int64
	Misses int64
}

// NewCachedLookup 创建缓存查询，l2 为 nil 时只使用本地缓存
func NewCachedLookup(next Lookup, cfg CacheConfig, l2 *redis.Client) (*CachedLookup, error) {
	if cfg.L1MaxCost <= 0 {
		cfg.L1MaxCost = 1 << 20
	}
	if cfg.L1NumCounters <= 0 {
		cfg.L1NumCounters = 10 * cfg.L1MaxCost
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ztask:datasource:"
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create datasource L1 cache: %w", err)
	}

	return &CachedLookup{
		next:   next,
		l1:     l1,
		l2:     l2,
		ttl:    cfg.TTL,
		prefix: cfg.KeyPrefix,
	}, nil
}

// Lookup 先查缓存，未命中时查询下游并回填
func (c *CachedLookup) Lookup(ctx context.Context, name string) (Record, error) {
	key := c.prefix + name

	if v, ok := c.l1.Get(key); ok {
		atomic.AddInt64(&c.stats.L1Hits, 1)
		return v.(Record), nil
	}

	if c.l2 != nil {
		data, err := c.l2.Get(ctx, key).Bytes()
		if err == nil {
			var rec Record
			if json.Unmarshal(data, &rec) == nil {
				c.l1.SetWithTTL(key, rec, 1, c.ttl)
				atomic.AddInt64(&c.stats.L2Hits, 1)
				return rec, nil
			}
		}
		// redis.Nil 或 redis 不可用时都直接回源
	}

	atomic.AddInt64(&c.stats.Misses, 1)
	v, err, _ := c.sf.Do(key, func() (interface{}, error) {
		rec, err := c.next.Lookup(ctx, name)
		if err != nil {
			return Record{}, err
		}
		c.l1.SetWithTTL(key, rec, 1, c.ttl)
		if c.l2 != nil {
			if data, mErr := json.Marshal(rec); mErr == nil {
				_ = c.l2.Set(ctx, key, data, c.ttl).Err()
			}
		}
		return rec, nil
	})
	if err != nil {
		return Record{}, err
	}
	return v.(Record), nil
}

// Invalidate 删除缓存项
func (c *CachedLookup) Invalidate(ctx context.Context, name string) error {
	key := c.prefix + name
	c.l1.Del(key)
	if c.l2 != nil {
		return c.l2.Del(ctx, key).Err()
	}
	return nil
}

// Wait 等待 L1 缓冲写入完成
func (c *CachedLookup) Wait() {
	c.l1.Wait()
}

// Stats 命中统计
func (c *CachedLookup) Stats() CacheStats {
	return CacheStats{
		L1Hits: atomic.LoadInt64(&c.stats.L1Hits),
		L2Hits: atomic.LoadInt64(&c.stats.L2Hits),
		Misses: atomic.LoadInt64(&c.stats.Misses),
	}
}

// Close 关闭本地缓存
func (c *CachedLookup) Close() {
	c.l1.Close()
}
