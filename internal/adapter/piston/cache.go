package piston

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"gitlab.com/autograder.net/internal/core/ports/primary"
	"gitlab.com/autograder.net/internal/core/ports/secondary"
	"gitlab.com/autograder.net/internal/domain"
)

const runtimesKey = "runtimes"

// CachedClient serves ListRuntimes from memory until the TTL elapses.
// Execute is passed through untouched.
type CachedClient struct {
	secondary.Sandbox

	ttl    time.Duration
	now    func() time.Time
	logger primary.Logger

	mu         sync.RWMutex
	runtimes   []domain.Runtime
	expiresAt  time.Time
	generation uint64

	group singleflight.Group
}

var _ secondary.RuntimeCatalog = &CachedClient{}

func NewCachedClient(sandbox secondary.Sandbox, ttl time.Duration, logger primary.Logger) *CachedClient {
	return &CachedClient{
		Sandbox: sandbox,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

func (c *CachedClient) ListRuntimes(ctx context.Context) ([]domain.Runtime, error) {
	if runtimes, ok := c.cached(); ok {
		return runtimes, nil
	}

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	// the shared fetch must not die with the first caller's context
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(runtimesKey, func() (interface{}, error) {
		c.logger.Debug("Fetching runtimes from sandbox (cache miss)")
		runtimes, err := c.Sandbox.ListRuntimes(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.store(gen, runtimes)
		return runtimes, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]domain.Runtime)), nil
	}
}

// InvalidateRuntimes drops the cached list. A fetch already in flight does not repopulate it.
func (c *CachedClient) InvalidateRuntimes() {
	c.mu.Lock()
	c.runtimes = nil
	c.expiresAt = time.Time{}
	c.generation++
	c.mu.Unlock()
	c.group.Forget(runtimesKey)
	c.logger.Info("Runtime cache invalidated")
}

// Warm fills the cache ahead of the first request
func (c *CachedClient) Warm(ctx context.Context) error {
	runtimes, err := c.ListRuntimes(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("Runtime cache warmed", "count", len(runtimes))
	return nil
}

func (c *CachedClient) cached() ([]domain.Runtime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.runtimes == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return clone(c.runtimes), true
}

func (c *CachedClient) store(gen uint64, runtimes []domain.Runtime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.runtimes = clone(runtimes)
	c.expiresAt = c.now().Add(c.ttl)
}

func clone(in []domain.Runtime) []domain.Runtime {
	out := make([]domain.Runtime, len(in))
	copy(out, in)
	return out
}
