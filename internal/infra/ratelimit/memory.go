package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
)

// Memory is a per-process token bucket: limit tokens refilled evenly over window.
type Memory struct {
	mu      sync.Mutex
	limit   float64
	rate    float64
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{
		limit:   float64(limit),
		rate:    float64(limit) / window.Seconds(),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: m.limit, seen: now}
		m.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = min(m.limit, b.tokens+elapsed*m.rate)
		b.seen = now
	}
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

var _ middleware.Limiter = (*Memory)(nil)
