// Package contacts memoizes handle → contact lookups against the gateway.
package contacts

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/store"
)

// Fetcher performs a single contact lookup. maxAge is the lifetime hint the
// gateway sent with the response, or zero.
type Fetcher interface {
	LookupContact(ctx context.Context, handle string) (contact *model.Contact, maxAge time.Duration, err error)
}

// Persister stores lookup results across restarts.
type Persister interface {
	SaveContact(c store.CachedContact) error
	LoadContacts(now time.Time) ([]store.CachedContact, error)
}

// Options configures a Cache.
type Options struct {
	TTL              time.Duration
	NegativeTTL      time.Duration
	Capacity         int
	LookupsPerSecond int
	Persister        Persister
}

type entry struct {
	contact   *model.Contact
	expiresAt time.Time
}

type call struct {
	done    chan struct{}
	contact *model.Contact
	err     error
}

// Cache holds resolved contacts in insertion order: iteration starts at the
// oldest write, and the oldest entry is evicted once Capacity is reached.
// Re-resolving a handle moves it to the back.
type Cache struct {
	fetcher Fetcher
	persist Persister
	limiter ratelimit.Limiter
	opts    Options
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.Mutex
	entries  *orderedmap.OrderedMap[string, entry]
	inflight map[string]*call
}

// NewCache creates a contact cache backed by fetcher.
func NewCache(fetcher Fetcher, opts Options, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 2000
	}
	limiter := ratelimit.NewUnlimited()
	if opts.LookupsPerSecond > 0 {
		limiter = ratelimit.New(opts.LookupsPerSecond)
	}
	return &Cache{
		fetcher:  fetcher,
		persist:  opts.Persister,
		limiter:  limiter,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		entries:  orderedmap.NewOrderedMap[string, entry](),
		inflight: make(map[string]*call),
	}
}

// Warm loads unexpired entries from the persister. Returns the number loaded.
func (c *Cache) Warm() (int, error) {
	if c.persist == nil {
		return 0, nil
	}
	rows, err := c.persist.LoadContacts(c.now())
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rows {
		c.putLocked(r.Handle, entry{contact: r.Contact, expiresAt: r.ExpiresAt})
	}
	return len(rows), nil
}

// Get returns a cached result without blocking. cached is false on a miss
// or an expired entry; a cached negative lookup returns (nil, true).
func (c *Cache) Get(handle string) (contact *model.Contact, cached bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(handle)
	if !ok {
		return nil, false
	}
	return e.contact, true
}

// Resolve returns the cached contact or performs one lookup. Concurrent
// resolves of the same handle share a single request. A handle the gateway
// does not know resolves to (nil, nil).
func (c *Cache) Resolve(ctx context.Context, handle string) (*model.Contact, error) {
	c.mu.Lock()
	if e, ok := c.lookupLocked(handle); ok {
		c.mu.Unlock()
		return e.contact, nil
	}
	if cl, ok := c.inflight[handle]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.contact, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	cl := &call{done: make(chan struct{})}
	c.inflight[handle] = cl
	c.mu.Unlock()

	cl.contact, cl.err = c.fetch(ctx, handle)

	c.mu.Lock()
	delete(c.inflight, handle)
	c.mu.Unlock()
	close(cl.done)
	return cl.contact, cl.err
}

// Len returns the number of cached entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Handles returns cached handles from oldest to newest.
func (c *Cache) Handles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.entries.Len())
	for k := range c.entries.Keys() {
		out = append(out, k)
	}
	return out
}

// take waits for a lookup slot or until ctx ends.
func (c *Cache) take(ctx context.Context) error {
	taken := make(chan struct{})
	go func() {
		c.limiter.Take()
		close(taken)
	}()
	select {
	case <-taken:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func (c *Cache) fetch(ctx context.Context, handle string) (*model.Contact, error) {
	if err := c.take(ctx); err != nil {
		return nil, err
	}
	contact, maxAge, err := c.fetcher.LookupContact(ctx, handle)

	var ttl time.Duration
	switch {
	case err == nil:
		ttl = c.opts.TTL
		if maxAge > 0 {
			ttl = maxAge
		}
	case errors.Is(err, api.ErrNotFound):
		contact, err = nil, nil
		ttl = c.opts.NegativeTTL
	default:
		c.logger.Debug("contact lookup failed", zap.String("handle", handle), zap.Error(err))
		return nil, err
	}

	e := entry{contact: contact, expiresAt: c.now().Add(ttl)}
	c.mu.Lock()
	c.putLocked(handle, e)
	c.mu.Unlock()

	if c.persist != nil {
		if perr := c.persist.SaveContact(store.CachedContact{Handle: handle, Contact: contact, ExpiresAt: e.expiresAt}); perr != nil {
			c.logger.Warn("persist contact failed", zap.String("handle", handle), zap.Error(perr))
		}
	}
	return contact, nil
}

func (c *Cache) lookupLocked(handle string) (entry, bool) {
	e, ok := c.entries.Get(handle)
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.entries.Delete(handle)
		return entry{}, false
	}
	return e, true
}

func (c *Cache) putLocked(handle string, e entry) {
	c.entries.Delete(handle)
	for c.entries.Len() >= c.opts.Capacity {
		front := c.entries.Front()
		if front == nil {
			break
		}
		c.entries.Delete(front.Key)
	}
	c.entries.Set(handle, e)
}
