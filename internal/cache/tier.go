// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"time"
)

// Tier composes the three cache layers into the single read-through policy
// spec.md §4.7 requires: Get = hot ?? warm ?? (cold -> populate warm ->
// populate hot).
type Tier struct {
	Hot  *Hot
	Warm *Warm
	Cold *Cold
}

// Get reads key through Hot, then Warm, then Cold, populating the faster
// tiers on a lower-tier hit. Returns (nil, false) only if all three miss.
func (t *Tier) Get(ctx context.Context, key string, ttl time.Duration) ([]byte, bool) {
	if t.Hot != nil {
		if v, ok := t.Hot.Get(ctx, key); ok {
			return v, true
		}
	}
	if t.Warm != nil {
		if v, ok := t.Warm.Get(key); ok {
			if t.Hot != nil {
				t.Hot.Set(ctx, key, v, ttl)
			}
			return v, true
		}
	}
	if t.Cold != nil {
		if v, ok := t.Cold.Get(key); ok {
			if t.Warm != nil {
				t.Warm.Set(key, v)
			}
			if t.Hot != nil {
				t.Hot.Set(ctx, key, v, ttl)
			}
			return v, true
		}
	}
	return nil, false
}

// Set populates every configured tier with value under key.
func (t *Tier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.Hot != nil {
		if err := t.Hot.Set(ctx, key, value, ttl); err != nil {
			return err
		}
	}
	if t.Warm != nil {
		if err := t.Warm.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}
