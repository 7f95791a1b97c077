package contacts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/store"
)

type fakeFetcher struct {
	calls  atomic.Int32
	gate   chan struct{}
	maxAge time.Duration
	err    error
}

func (f *fakeFetcher) LookupContact(ctx context.Context, handle string) (*model.Contact, time.Duration, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, 0, f.err
	}
	return &model.Contact{Handle: handle, Name: "Name " + handle}, f.maxAge, nil
}

type memPersister struct {
	mu   sync.Mutex
	rows []store.CachedContact
}

func (p *memPersister) SaveContact(c store.CachedContact) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, c)
	return nil
}

func (p *memPersister) LoadContacts(now time.Time) ([]store.CachedContact, error) {
	var out []store.CachedContact
	for _, r := range p.rows {
		if r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(f Fetcher, opts Options) (*Cache, *clock) {
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.NegativeTTL == 0 {
		opts.NegativeTTL = time.Minute
	}
	c := NewCache(f, opts, nil)
	c.now = clk.Now
	return c, clk
}

func TestResolveCachesPositive(t *testing.T) {
	f := &fakeFetcher{}
	c, clk := newTestCache(f, Options{})
	ctx := context.Background()

	got, err := c.Resolve(ctx, "+1555")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Name +1555" {
		t.Errorf("name = %q", got.Name)
	}
	if _, err := c.Resolve(ctx, "+1555"); err != nil {
		t.Fatal(err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}

	clk.Advance(time.Hour)
	if _, cached := c.Get("+1555"); cached {
		t.Error("entry should expire after TTL")
	}
}

func TestNegativeLookupUsesShorterTTL(t *testing.T) {
	f := &fakeFetcher{err: fmt.Errorf("lookup: %w", api.ErrNotFound)}
	c, clk := newTestCache(f, Options{})

	got, err := c.Resolve(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("not-found should not be an error, got %v", err)
	}
	if got != nil {
		t.Errorf("contact = %+v, want nil", got)
	}
	contact, cached := c.Get("nobody")
	if !cached || contact != nil {
		t.Errorf("Get = (%v, %v), want (nil, true)", contact, cached)
	}

	clk.Advance(time.Minute)
	if _, cached := c.Get("nobody"); cached {
		t.Error("negative entry should expire after NegativeTTL")
	}
}

func TestTransientErrorsAreNotCached(t *testing.T) {
	f := &fakeFetcher{err: fmt.Errorf("dial: %w", api.ErrUnavailable)}
	c, _ := newTestCache(f, Options{})

	if _, err := c.Resolve(context.Background(), "h"); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if _, cached := c.Get("h"); cached {
		t.Error("transient failure was cached")
	}
	if _, err := c.Resolve(context.Background(), "h"); err == nil {
		t.Fatal("expected error on retry")
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2", n)
	}
}

func TestMaxAgeHintOverridesTTL(t *testing.T) {
	f := &fakeFetcher{maxAge: 10 * time.Second}
	c, clk := newTestCache(f, Options{})

	if _, err := c.Resolve(context.Background(), "h"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(9 * time.Second)
	if _, cached := c.Get("h"); !cached {
		t.Error("entry expired before hint")
	}
	clk.Advance(time.Second)
	if _, cached := c.Get("h"); cached {
		t.Error("entry outlived max-age hint")
	}
}

func TestConcurrentResolveSharesOneRequest(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{})}
	c, _ := newTestCache(f, Options{})

	var wg sync.WaitGroup
	results := make([]*model.Contact, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Resolve(context.Background(), "shared")
		}(i)
	}

	deadline := time.Now().Add(time.Second)
	for f.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give the remaining goroutines time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
	for i, r := range results {
		if r == nil || r.Handle != "shared" {
			t.Errorf("result[%d] = %+v", i, r)
		}
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	c, _ := newTestCache(&fakeFetcher{}, Options{Capacity: 2})
	ctx := context.Background()

	for _, h := range []string{"a", "b", "c"} {
		if _, err := c.Resolve(ctx, h); err != nil {
			t.Fatal(err)
		}
	}
	got := c.Handles()
	want := []string{"b", "c"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("handles = %v, want %v", got, want)
	}
}

func TestWarmAndPersist(t *testing.T) {
	p := &memPersister{}
	f := &fakeFetcher{}
	c, clk := newTestCache(f, Options{Persister: p})

	if _, err := c.Resolve(context.Background(), "h"); err != nil {
		t.Fatal(err)
	}
	if len(p.rows) != 1 {
		t.Fatalf("persisted %d rows, want 1", len(p.rows))
	}

	c2 := NewCache(f, Options{TTL: time.Hour, Persister: p}, nil)
	c2.now = clk.Now
	n, err := c2.Warm()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("warmed %d, want 1", n)
	}
	if contact, cached := c2.Get("h"); !cached || contact.Name != "Name h" {
		t.Errorf("warm Get = (%+v, %v)", contact, cached)
	}
	if calls := f.calls.Load(); calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestResolveCancelledWhileThrottled(t *testing.T) {
	f := &fakeFetcher{}
	c, _ := newTestCache(f, Options{LookupsPerSecond: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Resolve(ctx, "+1555"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
	if n := f.calls.Load(); n != 0 {
		t.Errorf("lookups = %d, want 0", n)
	}
	if _, ok := c.Get("+1555"); ok {
		t.Error("cancelled resolve must not be cached")
	}
}
