package usecase

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

const defaultPoolSize = 4

// WorkerPool caps concurrent outbound capability calls within one execution.
// A nil pool runs tasks inline.
type WorkerPool struct {
	sem  *semaphore.Weighted
	size int
}

func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = defaultPoolSize
	}
	return &WorkerPool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

func (p *WorkerPool) Size() int {
	if p == nil {
		return 1
	}
	return p.size
}

// Run executes fn while holding one pool slot. A panic inside fn is returned
// as an error so one task cannot take down its siblings.
func (p *WorkerPool) Run(ctx context.Context, fn func(context.Context) error) (err error) {
	if p != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("acquire worker slot: %w", err)
		}
		defer p.sem.Release(1)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker task panic: %v", r)
		}
	}()
	return fn(ctx)
}

// ForEach runs fn for every index in [0, n) on the pool and waits for all of
// them. Errors are reported per index through onError, which may be called
// concurrently. fn owns its own output slot, so callers writing to
// index-addressed slices need no locking.
func (p *WorkerPool) ForEach(ctx context.Context, n int, fn func(context.Context, int) error, onError func(int, error)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := p.Run(ctx, func(taskCtx context.Context) error {
				return fn(taskCtx, idx)
			})
			if err != nil && onError != nil {
				onError(idx, err)
			}
		}(i)
	}
	wg.Wait()
}
