package evalvm

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Pass is one independent evaluation, usually one character.
type Pass struct {
	VM      *VM
	Program Program
}

type SchedulerOption func(*Scheduler)

func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) { s.workers = n }
}

func WithQueueSize(n int) SchedulerOption {
	return func(s *Scheduler) { s.queueSize = n }
}

func WithSchedulerLogger(log logrus.FieldLogger) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

// Scheduler runs passes on a pool of reusable workers. Tasks of one pass
// always run in order on one worker. Workers live until Close.
type Scheduler struct {
	pool      worker.DynamicWorkerPool
	workers   int
	queueSize int
	log       logrus.FieldLogger

	mu     sync.Mutex
	nextID int
	closed bool
}

func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		workers:   max(runtime.NumCPU()-1, 1),
		queueSize: 256,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.workers = max(s.workers, 1)
	// workers never idle out, the timeout is ignored by the pool
	s.pool = worker.NewDynamicWorkerPool(s.workers, s.queueSize, time.Second)
	return s
}

func (s *Scheduler) Workers() int { return s.workers }

// Run evaluates every pass and waits for all of them. A pass that panics is
// reported in the returned error and does not stop the others.
func (s *Scheduler) Run(passes []Pass) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []error

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		panic("evalvm: Run on closed scheduler")
	}
	firstID := s.nextID
	s.nextID += len(passes)
	s.mu.Unlock()

	for i := range passes {
		pass := passes[i]
		index := i
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: firstID + i,
			Do: func() (result any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err = errors.Errorf("pass %d: %v", index, r)
						mu.Lock()
						failed = append(failed, err)
						mu.Unlock()
					}
				}()
				pass.VM.Run(pass.Program)
				return pass.VM, nil
			},
		})
	}
	wg.Wait()

	if len(failed) == 0 {
		return nil
	}
	s.log.WithField("count", len(failed)).Warn("Evaluation passes failed")
	return errors.Wrapf(failed[0], "%d of %d passes failed", len(failed), len(passes))
}

// Close waits for every worker goroutine to exit. Pool workers only leave
// on a stop message carrying their own id and another worker may swallow
// it, so each worker is handed a task that ends its goroutine instead.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: -1 - i,
			Do: func() (any, error) {
				wg.Done()
				runtime.Goexit()
				return nil, nil
			},
		})
	}
	wg.Wait()
	s.log.WithField("workers", s.workers).Debug("Scheduler closed")
}
