// Package taskpool runs background tasks on a fixed set of worker goroutines.
package taskpool

import (
	"context"
	"runtime"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = eris.New("task pool closed")

// Task is a unit of work. ctx is cancelled when the pool closes.
type Task func(ctx context.Context)

// Pool is a fixed-size worker pool with an unbounded queue. Workers start on the first
// Submit. The zero value is not usable; call New.
type Pool struct {
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a pool with the given number of workers; n <= 0 uses one per logical CPU.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{workers: n}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Workers returns the pool size
func (p *Pool) Workers() int {
	return p.workers
}

// Submit queues task. It never blocks.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if !p.started {
		p.start()
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// start launches the workers. p.mu must be held.
func (p *Pool) start() {
	p.started = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.group = &errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		p.group.Go(p.work)
	}
}

func (p *Pool) work() error {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return nil
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task(p.ctx)
	}
}

// Pending returns the number of queued tasks that no worker has picked up yet
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close cancels running tasks, discards queued ones and waits for every worker to exit.
// It returns the number of discarded tasks. Calling Close again is a no-op.
func (p *Pool) Close() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	p.closed = true
	discarded := len(p.queue)
	p.queue = nil
	started := p.started
	if started {
		p.cancel()
	}
	p.cond.Broadcast()
	p.mu.Unlock()

	if started {
		_ = p.group.Wait()
	}
	return discarded
}
