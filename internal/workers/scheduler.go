package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradegate/internal/metrics"
	"tradegate/pkg/errors"
	"tradegate/pkg/logger"
)

// Scheduler manages and coordinates multiple workers
type Scheduler struct {
	workers         []Worker
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	log             *logger.Logger
	started         bool
	shutdownTimeout time.Duration
}

// NewScheduler creates a new worker scheduler
func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		workers:         make([]Worker, 0),
		log:             log.Component("scheduler"),
		shutdownTimeout: 30 * time.Second,
	}
}

// RegisterWorker adds a worker to the scheduler
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("cannot register worker after scheduler has started", "worker", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start begins running all registered workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	workers := append([]Worker(nil), s.workers...)
	s.mu.Unlock()

	s.log.Infow("starting worker scheduler", "workers", len(workers))

	for _, w := range workers {
		if !w.Enabled() {
			s.log.Infow("skipping disabled worker", "worker", w.Name())
			continue
		}

		s.wg.Add(1)
		go s.runWorker(w)
	}

	return nil
}

// Stop cancels every worker and waits for in-flight runs to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("stopping worker scheduler")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("all workers stopped")
	case <-time.After(s.shutdownTimeout):
		s.log.Warnw("worker shutdown timed out", "timeout", s.shutdownTimeout)
		shutdownErr = errors.Wrapf(errors.ErrInternal, "shutdown timeout after %s", s.shutdownTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

// RunOnce executes every enabled worker a single time, sequentially
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, w := range s.GetWorkers() {
		if !w.Enabled() {
			continue
		}
		if err := s.execute(ctx, w); err != nil {
			errs = append(errs, errors.Wrapf(err, "worker %s", w.Name()))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) runWorker(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	// first run is immediate
	_ = s.execute(s.ctx, w)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infow("worker stopping", "worker", w.Name())
			return
		case <-ticker.C:
			_ = s.execute(s.ctx, w)
		}
	}
}

// execute runs one iteration, converting panics into errors
func (s *Scheduler) execute(ctx context.Context, w Worker) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(errors.ErrInternal, fmt.Sprintf("worker panicked: %v", r))
		}

		duration := time.Since(start)
		metrics.RecordWorkerExecution(w.Name(), duration, err)
		if rec, ok := w.(healthRecorder); ok {
			if err != nil {
				rec.RecordError(err, duration)
			} else {
				rec.RecordRun(duration)
			}
		}

		if err != nil {
			s.log.Errorw("worker execution failed", "worker", w.Name(), "error", err, "duration", duration)
			return
		}
		s.log.Debugw("worker execution completed", "worker", w.Name(), "duration", duration)
	}()

	return w.Run(ctx)
}

// GetWorkers returns a list of all registered workers
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
