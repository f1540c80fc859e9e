package memory

import (
	"context"
	"sync"

	"github.com/CypherNinjaa/social-media-sub000/internal/domain/profile"
)

// ProfileDirectory is a fixed in-memory profile lookup.
type ProfileDirectory struct {
	mu       sync.RWMutex
	profiles map[string]profile.Profile
}

func NewProfileDirectory(seed ...profile.Profile) *ProfileDirectory {
	d := &ProfileDirectory{profiles: make(map[string]profile.Profile, len(seed))}
	for _, p := range seed {
		d.profiles[p.UserID] = p
	}
	return d
}

func (d *ProfileDirectory) Put(p profile.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.UserID] = p
}

func (d *ProfileDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]profile.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]profile.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var _ profile.Directory = (*ProfileDirectory)(nil)
