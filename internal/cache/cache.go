// Package cache keeps computed climate reports so repeated requests skip the store.
package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encoded values. Invalidate drops everything stored so far.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Nop is the cache used when no Redis is configured: every lookup misses.
type Nop struct{}

func (Nop) GetJSON(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) SetJSON(context.Context, string, any, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context) error { return nil }
func (Nop) Ping(context.Context) error { return nil }
func (Nop) Close() error { return nil }
