package cache

import (
	"context"
	"sync"
	"time"
)

type stampEntry struct {
	stamp     time.Time
	expiresAt time.Time
}

// InMemorySnapshotGuard implements SnapshotGuard with a map. Suitable for
// single-instance deployments and tests; state does not survive a restart,
// which only means the first snapshot after startup is always accepted.
type InMemorySnapshotGuard struct {
	mu        sync.Mutex
	entries   map[string]stampEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemorySnapshotGuard creates a guard and starts its cleanup loop.
func NewInMemorySnapshotGuard(ttl time.Duration) *InMemorySnapshotGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	g := &InMemorySnapshotGuard{
		entries:  make(map[string]stampEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	g.wg.Add(1)
	go g.cleanupLoop()

	return g
}

// Check reports whether the stamp would be accepted, without storing it.
func (g *InMemorySnapshotGuard) Check(ctx context.Context, key string, stamp time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e, ok := g.entries[key]; ok && time.Now().Before(e.expiresAt) && !stamp.After(e.stamp) {
		return false, nil
	}
	return true, nil
}

// Observe accepts the stamp when it is strictly newer than the stored one.
func (g *InMemorySnapshotGuard) Observe(ctx context.Context, key string, stamp time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if e, ok := g.entries[key]; ok && now.Before(e.expiresAt) && !stamp.After(e.stamp) {
		return false, nil
	}

	g.entries[key] = stampEntry{
		stamp:     stamp,
		expiresAt: now.Add(g.ttl),
	}
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (g *InMemorySnapshotGuard) Close() error {
	g.closeOnce.Do(func() {
		close(g.stopChan)
		g.wg.Wait()
	})
	return nil
}

// Size returns the number of tracked keys (for tests).
func (g *InMemorySnapshotGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func (g *InMemorySnapshotGuard) cleanupLoop() {
	defer g.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.cleanup()
		}
	}
}

func (g *InMemorySnapshotGuard) cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for key, e := range g.entries {
		if now.After(e.expiresAt) {
			delete(g.entries, key)
		}
	}
}

var _ SnapshotGuard = (*InMemorySnapshotGuard)(nil)
