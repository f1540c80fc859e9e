package realtime

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

const (
	DefaultFeedLimit = 100
	MaxFeedLimit     = 500
)

var ErrInvalidFeedCursor = errors.New("realtime: invalid feed cursor")

// FeedEntry is a stored change addressed to one user.
type FeedEntry struct {
	Cursor string `json:"cursor"`
	Change
}

// Feed is the per-user polling log of changes, oldest first after a cursor.
type Feed interface {
	Sink
	Changes(ctx context.Context, userID, after string, limit int) ([]FeedEntry, error)
}

func NormalizeFeedLimit(limit int) int {
	if limit <= 0 {
		return DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		return MaxFeedLimit
	}
	return limit
}

// MemoryFeed keeps the most recent changes per user in process memory.
type MemoryFeed struct {
	mu      sync.RWMutex
	seq     uint64
	entries map[string][]memoryEntry
	Retain  int
}

type memoryEntry struct {
	seq    uint64
	change Change
}

func NewMemoryFeed(retain int) *MemoryFeed {
	if retain <= 0 {
		retain = 1000
	}
	return &MemoryFeed{entries: make(map[string][]memoryEntry), Retain: retain}
}

func (f *MemoryFeed) Deliver(_ context.Context, change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	for _, user := range change.Audience {
		list := append(f.entries[user], memoryEntry{seq: f.seq, change: change})
		if len(list) > f.Retain {
			list = list[len(list)-f.Retain:]
		}
		f.entries[user] = list
	}
	return nil
}

func (f *MemoryFeed) Changes(_ context.Context, userID, after string, limit int) ([]FeedEntry, error) {
	var from uint64
	if after != "" {
		v, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			return nil, ErrInvalidFeedCursor
		}
		from = v
	}
	limit = NormalizeFeedLimit(limit)
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]FeedEntry, 0)
	for _, e := range f.entries[userID] {
		if e.seq <= from {
			continue
		}
		out = append(out, FeedEntry{Cursor: strconv.FormatUint(e.seq, 10), Change: e.change})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

var _ Feed = (*MemoryFeed)(nil)
