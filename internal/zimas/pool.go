package zimas

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrPoolClosed is returned by Checkout after Close.
var ErrPoolClosed = eris.New("zimas: pool closed")

// Pool keeps up to size live resources, creating them lazily. Resources are
// checked out for exclusive use and must be returned with Checkin, or with
// Discard when they are broken.
type Pool[T any] struct {
	create  func(context.Context) (T, error)
	destroy func(T) error

	idle  chan T
	slots chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool holding at most size resources.
func NewPool[T any](size int, create func(context.Context) (T, error), destroy func(T) error) *Pool[T] {
	if size <= 0 {
		size = 1
	}
	return &Pool[T]{
		create:  create,
		destroy: destroy,
		idle:    make(chan T, size),
		slots:   make(chan struct{}, size),
		done:    make(chan struct{}),
	}
}

// Checkout returns an idle resource, creates one if the pool has room, or
// waits for one to be returned.
func (p *Pool[T]) Checkout(ctx context.Context) (T, error) {
	var zero T

	select {
	case <-p.done:
		return zero, ErrPoolClosed
	default:
	}

	select {
	case r := <-p.idle:
		return r, nil
	default:
	}

	select {
	case r := <-p.idle:
		return r, nil
	case p.slots <- struct{}{}:
		r, err := p.create(ctx)
		if err != nil {
			<-p.slots
			return zero, eris.Wrap(err, "zimas: create pooled resource")
		}
		return r, nil
	case <-p.done:
		return zero, ErrPoolClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Checkin returns a healthy resource to the pool.
func (p *Pool[T]) Checkin(r T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = p.release(r)
		return
	}
	p.idle <- r
}

// Discard destroys a broken resource and frees its slot.
func (p *Pool[T]) Discard(r T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.release(r)
}

// Live returns the number of resources currently alive.
func (p *Pool[T]) Live() int { return len(p.slots) }

// Close destroys idle resources and makes further checkouts fail. Resources
// still checked out are destroyed when they come back.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var firstErr error
	for {
		select {
		case r := <-p.idle:
			if err := p.release(r); err != nil && firstErr == nil {
				firstErr = err
			}
		default:
			return firstErr
		}
	}
}

func (p *Pool[T]) release(r T) error {
	<-p.slots
	if p.destroy == nil {
		return nil
	}
	return p.destroy(r)
}
