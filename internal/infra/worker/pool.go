// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// A small fixed-size worker pool. The upload pipeline uses it to bound
// cross-file concurrency; it never grows past the configured size.

type Task func(ctx context.Context) error

type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	n    int
	log  *zerolog.Logger
}

// NewPool builds a pool of n workers with a queue of the given capacity.
func NewPool(n, queue int, logger *zerolog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if queue < n {
		queue = n
	}
	poolLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, queue), n: n, log: &poolLog}
}

// Start launches the workers. Each drains the queue until Stop closes it:
// a cancelled ctx is passed through rather than used as an exit signal, so
// every submitted task runs and can bail out on its own ctx check instead
// of being abandoned in the queue.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				if task == nil {
					continue
				}
				if err := task(ctx); err != nil {
					p.log.Warn().Int("worker", id).Err(err).Msg("task error")
				}
			}
		}(i)
	}
}

// Stop closes the queue and waits until every submitted task has run.
// No Submit may follow Stop.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return errors.New("worker queue full")
	}
}
