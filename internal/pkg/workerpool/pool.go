package workerpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config defines the worker pool configuration
type Config struct {
	Workers   int `mapstructure:"workers"`   // pool size
	QueueSize int `mapstructure:"queuesize"` // pending task buffer
}

// DefaultConfig returns the default worker pool configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:   16,
		QueueSize: 256,
	}
}

// Statistics holds pool counters
type Statistics struct {
	mu sync.RWMutex

	Submitted int64
	Completed int64
	Failed    int64
}

func (s *Statistics) incSubmitted() {
	s.mu.Lock()
	s.Submitted++
	s.mu.Unlock()
}

func (s *Statistics) incCompleted() {
	s.mu.Lock()
	s.Completed++
	s.mu.Unlock()
}

func (s *Statistics) incFailed() {
	s.mu.Lock()
	s.Failed++
	s.mu.Unlock()
}

// Get returns a copy of the current counters
func (s *Statistics) Get() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Statistics{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
	}
}

// Pool is an ants-backed worker pool
type Pool struct {
	pool   *ants.Pool
	config *Config
	stats  *Statistics
	logger *zap.Logger
}

// New creates a worker pool
func New(config *Config, logger *zap.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	antsPool, err := ants.NewPool(config.Workers,
		ants.WithMaxBlockingTasks(config.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			logger.Error("worker panic", zap.Any("error", err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{
		pool:   antsPool,
		config: config,
		stats:  &Statistics{},
		logger: logger,
	}, nil
}

// Submit schedules a task on the pool
func (p *Pool) Submit(task func()) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}

	p.stats.incSubmitted()
	err := p.pool.Submit(func() {
		task()
		p.stats.incCompleted()
	})
	if err != nil {
		p.stats.incFailed()
		return fmt.Errorf("failed to submit task: %w", err)
	}
	return nil
}

// SubmitAndWait schedules a batch of tasks and blocks until all have finished.
// Intended for callers that fan work out and need the results before moving on.
func (p *Pool) SubmitAndWait(tasks []func()) error {
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for _, task := range tasks {
		task := task
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			task()
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}

	wg.Wait()
	return firstErr
}

// Running returns the number of busy workers
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Free returns the number of idle workers
func (p *Pool) Free() int {
	return p.pool.Free()
}

// Stats returns pool counters
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Shutdown releases the pool
func (p *Pool) Shutdown() {
	p.pool.Release()
}
