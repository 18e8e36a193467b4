package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/funnelcast/funnelcast/internal/player"
)

const (
	// DefaultPlaybackTTL evicts playbacks idle longer than this. Generous,
	// because a viewer parked on a frozen final frame is still a viewer.
	DefaultPlaybackTTL = 30 * time.Minute

	evictInterval = time.Minute
)

// Playback is one live viewer run of a session, held in memory between
// requests.
type Playback struct {
	ID       string
	Player   *player.Player
	Bundle   *Bundle
	lastSeen time.Time
}

// Registry holds live playbacks keyed by playback id. Evicted playbacks get
// a last-resort watch-time flush so closing-without-unload viewers still
// count.
type Registry struct {
	mu        sync.Mutex
	playbacks map[string]*Playback
	ttl       time.Duration
	now       func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultPlaybackTTL
	}
	return &Registry{
		playbacks: make(map[string]*Playback),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Put registers a playback under its id.
func (r *Registry) Put(pb *Playback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pb.lastSeen = r.now()
	r.playbacks[pb.ID] = pb
}

// Get returns a playback and refreshes its idle timer.
func (r *Registry) Get(id string) (*Playback, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pb, ok := r.playbacks[id]
	if ok {
		pb.lastSeen = r.now()
	}
	return pb, ok
}

// Remove drops a playback without flushing; callers that already flushed use
// this.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playbacks, id)
}

// Len reports the number of live playbacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.playbacks)
}

// EvictIdle removes playbacks idle past the TTL and flushes each one through
// its reporter as the unmount path. Returns how many were evicted.
func (r *Registry) EvictIdle(ctx context.Context) int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var stale []*Playback
	for id, pb := range r.playbacks {
		if pb.lastSeen.Before(cutoff) {
			stale = append(stale, pb)
			delete(r.playbacks, id)
		}
	}
	r.mu.Unlock()

	for _, pb := range stale {
		if rep := pb.Player.Reporter(); rep != nil && !rep.Saved() {
			rep.Flush(ctx, player.TriggerUnmount, pb.Player.WatchReport(pb.ID))
		}
	}
	if len(stale) > 0 {
		slog.Info("playback registry: evicted idle playbacks", "count", len(stale))
	}
	return len(stale)
}

// Run evicts on a ticker until the context is cancelled, then performs a
// final sweep of everything still live so shutdown loses no reports.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.EvictIdle(ctx)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Registry) drain() {
	r.mu.Lock()
	remaining := make([]*Playback, 0, len(r.playbacks))
	for id, pb := range r.playbacks {
		remaining = append(remaining, pb)
		delete(r.playbacks, id)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, pb := range remaining {
		if rep := pb.Player.Reporter(); rep != nil && !rep.Saved() {
			rep.Flush(ctx, player.TriggerUnmount, pb.Player.WatchReport(pb.ID))
		}
	}
}
