package connection

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/corewire/mongodrv/internal/csot"
	"github.com/corewire/mongodrv/pack"
)

// Pool bounds the number of concurrently checked-out connections to one
// address — the connection pool is the only shared mutable state here.
// Grounded on x/mongo/driver/topology's pool goroutine management, which
// gates its connection slice with a semaphore-style mechanism;
// implemented here directly with golang.org/x/sync/semaphore since that
// dependency has no other consumer in this core.
type Pool struct {
	addr                   string
	pk                     pack.Pack
	opts                   Options
	maxSize                int64
	serverSelectionTimeout time.Duration

	sem *semaphore.Weighted

	mu    sync.Mutex
	idle  []*Connection
	total int
}

// NewPool constructs a Pool bounded to maxSize simultaneous connections.
// serverSelectionTimeout bounds the time Checkout will wait for a free
// slot and a live connection combined; zero means wait on ctx alone.
func NewPool(addr string, p pack.Pack, opts Options, maxSize int64, serverSelectionTimeout time.Duration) *Pool {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Pool{
		addr:                   addr,
		pk:                     p,
		opts:                   opts,
		maxSize:                maxSize,
		serverSelectionTimeout: serverSelectionTimeout,
		sem:                    semaphore.NewWeighted(maxSize),
	}
}

// Checkout acquires a connection, blocking if the pool is saturated
// until a slot frees or ctx is cancelled, per this module's suspension
// point (c): "acquiring a connection from the pool". An idle connection
// is reused if one is available and still alive; otherwise a fresh one
// is dialed. The wait (and the dial, if one is needed) is bounded by
// the pool's server selection timeout, taken as the minimum of that
// timeout and ctx's own deadline per csot.WithServerSelectionTimeout.
func (p *Pool) Checkout(ctx context.Context) (*Connection, error) {
	ctx, cancel := csot.WithServerSelectionTimeout(ctx, p.serverSelectionTimeout)
	defer cancel()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	for len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()
		if c.Alive() {
			return c, nil
		}
		p.mu.Lock()
		p.total--
	}
	p.mu.Unlock()

	c, err := Connect(ctx, p.addr, p.pk, p.opts)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.mu.Lock()
	p.total++
	p.mu.Unlock()

	return c, nil
}

// Return releases a checked-out connection back to the pool. A dead
// connection is discarded rather than returned to idle.
func (p *Pool) Return(c *Connection) {
	defer p.sem.Release(1)

	if !c.Alive() {
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Close closes every idle connection. Checked-out connections are left
// to their callers to close.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
}
