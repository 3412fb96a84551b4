package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"deskbot/app/config"

	"github.com/samber/do"
	"golang.org/x/sync/semaphore"
)

const jobBufferSize = 16

// Service runs submitted jobs one at a time per key while keys run
// concurrently against each other, bounded by a global semaphore. This is
// what keeps two near-simultaneous events from the same user from racing
// on shared per-user state.
type Service struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted

	mu      sync.Mutex
	workers map[string]chan func(context.Context)
	wg      sync.WaitGroup
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	appCtx := do.MustInvoke[context.Context](di)

	return NewWithLimit(appCtx, cfg.Pipeline.MaxConcurrency), nil
}

func NewWithLimit(parent context.Context, maxConcurrency int) *Service {
	ctx, cancel := context.WithCancel(parent)

	return &Service{
		ctx:     ctx,
		cancel:  cancel,
		sem:     semaphore.NewWeighted(int64(maxConcurrency)),
		workers: make(map[string]chan func(context.Context)),
	}
}

// Submit enqueues a job on the key's worker, starting one if needed.
// Returns false when the worker's queue is full; the caller decides how
// to report that.
func (s *Service) Submit(key string, job func(context.Context)) bool {
	s.mu.Lock()
	jobs, ok := s.workers[key]
	if !ok {
		jobs = make(chan func(context.Context), jobBufferSize)
		s.workers[key] = jobs
		s.wg.Add(1)
		go s.runWorker(key, jobs)
	}
	s.mu.Unlock()

	select {
	case jobs <- job:
		return true
	default:
		slog.Warn("Worker queue is full", "key", key)
		return false
	}
}

func (s *Service) runWorker(key string, jobs <-chan func(context.Context)) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-jobs:
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return
			}
			job(s.ctx)
			s.sem.Release(1)
		}
	}
}

func (s *Service) Shutdown() error {
	s.cancel()
	s.wg.Wait()

	return nil
}
