package profile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roadprep/roadprep/internal/credits"
	"github.com/roadprep/roadprep/internal/history"
	"github.com/roadprep/roadprep/internal/identity"
	"github.com/roadprep/roadprep/internal/retry"
)

type mockIdentity struct {
	checkErr error
}

func (m *mockIdentity) Current(_ context.Context) (identity.Principal, error) {
	return identity.Principal{ID: "u1"}, nil
}

func (m *mockIdentity) CheckSession(_ context.Context, _ string) error {
	return m.checkErr
}

type mockLoader struct {
	mu      sync.Mutex
	profile Profile
	err     error
	calls   atomic.Int64
	block   chan struct{} // when set, Get waits until closed
}

func (m *mockLoader) Get(ctx context.Context, userID string) (Profile, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Profile{}, m.err
	}
	return m.profile, nil
}

type mockLedger struct {
	records []history.Record
	err     error
	reads   atomic.Int64
}

func (m *mockLedger) Append(_ context.Context, _ history.Record) error { return nil }

func (m *mockLedger) Since(_ context.Context, _ string, since time.Time) ([]history.Record, error) {
	m.reads.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var out []history.Record
	for _, r := range m.records {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLedger) Recent(_ context.Context, _ string, _ int) ([]history.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Timeouts:    []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 100 * time.Millisecond},
		InitialWait: time.Millisecond,
		MaxWait:     2 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func newTestCache(loader *mockLoader, ledger *mockLedger) *Cache {
	return NewCache(&mockIdentity{}, loader, ledger, testPolicy())
}

func TestGetFetchesOnce(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1"}}
	ledger := &mockLedger{}
	c := newTestCache(loader, ledger)
	ctx := context.Background()

	snap, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Balance.Practice != credits.PracticeQuota {
		t.Errorf("Practice = %d, want %d", snap.Balance.Practice, credits.PracticeQuota)
	}

	// Second Get is a cache hit.
	if _, err := c.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
}

func TestRefreshNoopWhenCached(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1"}}
	c := newTestCache(loader, &mockLedger{})
	ctx := context.Background()

	if _, err := c.Refresh(ctx, "u1", false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := c.Refresh(ctx, "u1", false); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}

	if _, err := c.Refresh(ctx, "u1", true); err != nil {
		t.Fatalf("forced Refresh: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader calls after force = %d, want 2", got)
	}
}

// Concurrent refreshes for one user must share a single backend read.
func TestRefreshCoalesces(t *testing.T) {
	block := make(chan struct{})
	loader := &mockLoader{profile: Profile{UserID: "u1"}, block: block}
	c := newTestCache(loader, &mockLedger{})
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Refresh(ctx, "u1", true)
		}()
	}

	// Let all callers join the in-flight fetch, then release it.
	time.Sleep(20 * time.Millisecond)
	close(block)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] == nil {
			t.Fatalf("caller %d: nil snapshot", i)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1 (coalesced)", got)
	}
}

func TestRefreshServesStaleOnFailure(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1", Premium: true}}
	c := newTestCache(loader, &mockLedger{})
	ctx := context.Background()

	first, err := c.Refresh(ctx, "u1", true)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	loader.mu.Lock()
	loader.err = errors.New("backend down")
	loader.mu.Unlock()

	snap, err := c.Refresh(ctx, "u1", true)
	if err != nil {
		t.Fatalf("Refresh with stale fallback: %v", err)
	}
	if snap != first {
		t.Error("expected the stale snapshot to be served")
	}
}

func TestRefreshUnavailableWithoutCache(t *testing.T) {
	loader := &mockLoader{err: errors.New("backend down")}
	c := newTestCache(loader, &mockLedger{})

	_, err := c.Refresh(context.Background(), "u1", true)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	// Exhausted the retry budget.
	if got := loader.calls.Load(); got != 3 {
		t.Errorf("loader calls = %d, want 3", got)
	}
}

func TestRefreshAbortsOnInvalidSession(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1"}}
	ledger := &mockLedger{}
	c := NewCache(&mockIdentity{checkErr: identity.ErrSessionInvalid}, loader, ledger, testPolicy())

	_, err := c.Refresh(context.Background(), "u1", true)
	if !errors.Is(err, identity.ErrSessionInvalid) {
		t.Fatalf("err = %v, want ErrSessionInvalid", err)
	}
	if got := loader.calls.Load(); got != 0 {
		t.Errorf("loader called %d times despite invalid session", got)
	}
}

func TestFeedAppliesProfileChange(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1", Premium: false}}
	c := newTestCache(loader, &mockLedger{})
	feed := NewMemoryFeed()
	c.Watch(feed, "u1")
	defer c.Close()

	ctx := context.Background()
	snap, err := c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Balance.Unlimited {
		t.Fatal("unexpected unlimited balance before upgrade")
	}

	// Payment completed out of band.
	feed.Publish("u1", Profile{UserID: "u1", Premium: true})

	snap, err = c.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get after feed: %v", err)
	}
	if !snap.Profile.Premium || !snap.Balance.Unlimited {
		t.Errorf("feed update not applied: %+v", snap)
	}
	// Applied in place, not refetched.
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader calls = %d, want 1", got)
	}
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	feed := NewMemoryFeed()

	var order []int
	for i := 0; i < 5; i++ {
		unsub := feed.Subscribe("u1", func(Profile) {
			order = append(order, i)
		})
		defer unsub()
	}

	feed.Publish("u1", Profile{UserID: "u1"})

	if len(order) != 5 {
		t.Fatalf("delivered to %d subscribers, want 5", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("delivery order = %v, want registration order", order)
		}
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	loader := &mockLoader{profile: Profile{UserID: "u1"}}
	c := newTestCache(loader, &mockLedger{})
	ctx := context.Background()

	if _, err := c.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	c.Invalidate("u1")
	if _, err := c.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Errorf("loader calls = %d, want 2", got)
	}
}
