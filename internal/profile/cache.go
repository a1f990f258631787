package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/identity"
	"github.com/roadprep/roadprep/internal/retry"
)

const (
	// sessionCheckBudget bounds the fail-fast session validity probe.
	sessionCheckBudget = 5 * time.Second

	// recentLimit is how much history a snapshot carries for display.
	recentLimit = 50
)

// Cache is the single in-process holder of the profile + balance
// snapshot. It is constructed once per application session and injected
// into consumers; all mutation goes through Refresh, Invalidate and the
// change-feed subscription.
//
// Concurrency contract: concurrent Refresh calls for one user coalesce
// into a single underlying fetch, and every caller receives that fetch's
// result. A change-feed delivery racing an in-flight fetch resolves
// last-write-wins on the stored snapshot.
type Cache struct {
	ident  identity.Provider
	loader Loader
	ledger history.Ledger
	policy retry.Policy
	now    func() time.Time

	group singleflight.Group

	mu        sync.Mutex
	snapshots map[string]*Snapshot
	unsub     func()
}

// NewCache creates a Cache. The retry policy shapes the profile fetch's
// tiered timeouts and backoff.
func NewCache(ident identity.Provider, loader Loader, ledger history.Ledger, policy retry.Policy) *Cache {
	return &Cache{
		ident:     ident,
		loader:    loader,
		ledger:    ledger,
		policy:    policy,
		now:       time.Now,
		snapshots: make(map[string]*Snapshot),
	}
}

// Get returns the cached snapshot, fetching one if none is cached.
func (c *Cache) Get(ctx context.Context, userID string) (*Snapshot, error) {
	c.mu.Lock()
	snap := c.snapshots[userID]
	c.mu.Unlock()
	if snap != nil {
		return snap, nil
	}
	return c.Refresh(ctx, userID, false)
}

// Refresh fetches a fresh snapshot. With force=false an existing snapshot
// is a cache hit and no fetch happens. Concurrent callers join the same
// in-flight fetch rather than issuing duplicate backend reads.
func (c *Cache) Refresh(ctx context.Context, userID string, force bool) (*Snapshot, error) {
	if !force {
		c.mu.Lock()
		snap := c.snapshots[userID]
		c.mu.Unlock()
		if snap != nil {
			return snap, nil
		}
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		return c.fetch(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, identity.ErrSessionInvalid) {
			return nil, err
		}
		// Degrade to the last good snapshot when one exists. Never
		// report unlimited on failure.
		c.mu.Lock()
		stale := c.snapshots[userID]
		c.mu.Unlock()
		if stale != nil {
			fmt.Fprintf(os.Stderr, "warning: profile refresh failed, serving stale snapshot: %v\n", err)
			return stale, nil
		}
		return nil, wrapUnavailable(err)
	}

	snap := v.(*Snapshot)
	c.mu.Lock()
	c.snapshots[userID] = snap
	c.mu.Unlock()
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Get or Refresh
// bypasses cache. Called when the profile changes out of band.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.snapshots, userID)
	c.mu.Unlock()
}

// Watch subscribes the cache to a change feed. A delivered profile is
// applied onto the current snapshot (last-write-wins) with the balance
// recomputed from the snapshot's history; without a snapshot there is
// nothing to update and the next Get fetches fresh.
func (c *Cache) Watch(feed Feed, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		c.unsub()
	}
	c.unsub = feed.Subscribe(userID, func(p Profile) {
		c.apply(userID, p)
	})
}

// Close tears down the feed subscription.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
}

func (c *Cache) apply(userID string, p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snapshots[userID]
	if snap == nil {
		return
	}
	updated := *snap
	updated.Profile = p
	updated.Balance = credits.Compute(snap.Recent, p.Premium, c.now())
	c.snapshots[userID] = &updated
}

// fetch performs the full snapshot build: session validity, profile load
// under the retry policy, then window history and recent history in
// parallel.
func (c *Cache) fetch(ctx context.Context, userID string) (*Snapshot, error) {
	checkCtx, cancel := context.WithTimeout(ctx, sessionCheckBudget)
	err := c.ident.CheckSession(checkCtx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, identity.ErrSessionInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("session check: %w", err)
	}

	var prof Profile
	err = c.policy.Do(ctx, func(ctx context.Context) error {
		p, err := c.loader.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return retry.Stop(err)
			}
			return err
		}
		prof = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	now := c.now()
	var window, recent []history.Record
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		window, err = c.ledger.Since(gctx, userID, now.Add(-credits.Window))
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = c.ledger.Recent(gctx, userID, recentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	return &Snapshot{
		Profile:   prof,
		Balance:   credits.Compute(window, prof.Premium, now),
		Recent:    recent,
		FetchedAt: now,
	}, nil
}
