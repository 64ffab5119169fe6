// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache implements the layered Hot/Warm/Cold cache tier: Redis for
// hot reads, gzip-compressed content-addressed files on disk for warm, and a
// wrapper over raw SOFT/XML bundles for cold.
//
// Implements: SPEC_FULL.md § 4.7.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Hot is the Redis-backed hot tier. It never evicts on its own; eviction is
// left to Redis's own maxmemory-policy, this client only ever sets EX.
type Hot struct {
	pool *redis.Pool
}

// NewHot builds a Hot tier against addr with the given pool size. Dialing is
// lazy: the pool doesn't connect until the first command.
func NewHot(addr string, poolSize int) *Hot {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &Hot{
		pool: &redis.Pool{
			MaxIdle:     poolSize,
			IdleTimeout: 240 * time.Second,
			Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
		},
	}
}

// Close releases the underlying connection pool.
func (h *Hot) Close() error { return h.pool.Close() }

// Get returns the cached bytes for key, or (nil, false) on a miss.
func (h *Hot) Get(ctx context.Context, key string) ([]byte, bool) {
	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return nil, false
	}
	defer conn.Close()

	b, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set stores value under key with the given TTL. A zero TTL means no
// expiry.
func (h *Hot) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("dialing redis: %w", err)
	}
	defer conn.Close()

	if ttl <= 0 {
		_, err = conn.Do("SET", key, value)
	} else {
		_, err = conn.Do("SET", key, value, "EX", int(ttl.Seconds()))
	}
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// InvalidatePattern deletes every key matching pattern (e.g. "geo:GSE189*")
// via SCAN + DEL, avoiding the blocking KEYS command.
func (h *Hot) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("dialing redis: %w", err)
	}
	defer conn.Close()

	deleted := 0
	cursor := "0"
	for {
		reply, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", pattern, "COUNT", 100))
		if err != nil {
			return deleted, fmt.Errorf("redis SCAN: %w", err)
		}
		if len(reply) != 2 {
			return deleted, fmt.Errorf("unexpected SCAN reply shape")
		}
		cursor, err = redis.String(reply[0], nil)
		if err != nil {
			return deleted, fmt.Errorf("decoding SCAN cursor: %w", err)
		}
		keys, err := redis.Strings(reply[1], nil)
		if err != nil {
			return deleted, fmt.Errorf("decoding SCAN keys: %w", err)
		}
		for _, k := range keys {
			if _, err := conn.Do("DEL", k); err == nil {
				deleted++
			}
		}
		if cursor == "0" {
			break
		}
	}
	return deleted, nil
}

// Stats reports a coarse health snapshot of the hot tier for the cache CLI's
// --stats and --health-check surfaces.
type Stats struct {
	Reachable bool
	KeyCount  int
}

// Ping checks Redis reachability and reports the current key count.
func (h *Hot) Ping(ctx context.Context) Stats {
	conn, err := h.pool.GetContext(ctx)
	if err != nil {
		return Stats{}
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return Stats{}
	}
	count, err := redis.Int(conn.Do("DBSIZE"))
	if err != nil {
		return Stats{Reachable: true}
	}
	return Stats{Reachable: true, KeyCount: count}
}

// Namespaced key builders, per spec.md §4.7's key layout.
func DatasetKey(geoID string) string        { return "geo:" + geoID }
func PublicationKey(hash string) string     { return "pub:" + hash }
func ParsedKey(hash string) string          { return "parsed:" + hash }
func SearchKey(hash string) string          { return "search:" + hash }
func DiscoveryKey(geoID string) string      { return "discovery:" + geoID }
