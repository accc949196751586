package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	pkgredis "github.com/bytevault/bytevault/internal/pkg/redis"
	"github.com/bytevault/bytevault/internal/storage/biz"
)

// Handler processes one task type
type Handler func(ctx context.Context, task *biz.Task) error

// Worker polls the ready queue and dispatches tasks to registered handlers.
// One extra goroutine moves due tasks from the delayed set onto the ready
// queue.
type Worker struct {
	redis       *pkgredis.Client
	handlers    map[string]Handler
	logger      *zap.Logger
	workerCount int
	wg          sync.WaitGroup
	stopCh      chan struct{}
	mu          sync.Mutex
	running     bool
}

// NewWorker creates the queue worker
func NewWorker(redis *pkgredis.Client, logger *zap.Logger, workerCount int) *Worker {
	if workerCount <= 0 {
		workerCount = 2
	}
	return &Worker{
		redis:       redis,
		handlers:    make(map[string]Handler),
		logger:      logger,
		workerCount: workerCount,
		stopCh:      make(chan struct{}),
	}
}

// Register binds a handler to a task type. Call before Start.
func (w *Worker) Register(taskType string, handler Handler) {
	w.handlers[taskType] = handler
}

// Start launches the worker goroutines
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.running = true
	w.logger.Info("starting storage task workers", zap.Int("worker_count", w.workerCount))

	for i := 0; i < w.workerCount; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}

	w.wg.Add(1)
	go w.delayedLoop(ctx)

	return nil
}

// Stop signals every goroutine and waits for them to drain
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.logger.Info("stopping storage task workers")
	close(w.stopCh)
	w.wg.Wait()
	w.running = false
	w.logger.Info("all workers stopped")
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With(zap.Int("worker_id", workerID))
	logger.Info("worker started")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			logger.Info("worker stopping")
			return
		case <-ctx.Done():
			logger.Info("context cancelled, worker stopping")
			return
		case <-ticker.C:
			taskJSON, err := w.redis.RPop(ctx, ReadyQueue)
			if err != nil || taskJSON == "" {
				continue
			}

			var task biz.Task
			if err := json.Unmarshal([]byte(taskJSON), &task); err != nil {
				logger.Error("failed to unmarshal task", zap.Error(err))
				continue
			}

			w.processTask(ctx, &task, logger)
		}
	}
}

func (w *Worker) processTask(ctx context.Context, task *biz.Task, logger *zap.Logger) {
	logger = logger.With(
		zap.String("task_id", task.ID),
		zap.String("type", task.Type))

	handler, ok := w.handlers[task.Type]
	if !ok {
		logger.Error("no handler registered for task type, dropping")
		return
	}

	logger.Info("processing task", zap.Int("attempt", task.Attempts+1))

	if _, err := w.redis.SAdd(ctx, ProcessingSet, task.ID); err != nil {
		logger.Error("failed to mark task as processing", zap.Error(err))
	}

	err := handler(ctx, task)

	_, _ = w.redis.SRem(ctx, ProcessingSet, task.ID)

	if err == nil {
		logger.Info("task completed")
		return
	}

	task.Attempts++
	logger.Error("task failed",
		zap.Error(err),
		zap.Int("attempts", task.Attempts),
		zap.Int("max_attempts", task.MaxAttempts))

	if task.Attempts < task.MaxAttempts {
		taskJSON, _ := json.Marshal(task)
		if _, err := w.redis.LPush(ctx, ReadyQueue, string(taskJSON)); err != nil {
			logger.Error("failed to re-enqueue task", zap.Error(err))
			return
		}
		logger.Info("task re-enqueued for retry")
	} else {
		logger.Error("task abandoned after max retries")
	}
}

// delayedLoop promotes due tasks from the delayed set to the ready queue
func (w *Worker) delayedLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.promoteDue(ctx)
		}
	}
}

func (w *Worker) promoteDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := w.redis.ZRangeByScore(ctx, DelayedSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: 100,
	})
	if err != nil {
		w.logger.Error("failed to read delayed tasks", zap.Error(err))
		return
	}

	for _, taskJSON := range due {
		// Remove first; only the remover promotes, so a task is never
		// delivered twice even with several workers running.
		removed, err := w.redis.ZRem(ctx, DelayedSet, taskJSON)
		if err != nil || removed == 0 {
			continue
		}
		if _, err := w.redis.LPush(ctx, ReadyQueue, taskJSON); err != nil {
			w.logger.Error("failed to promote delayed task", zap.Error(err))
			// Put it back rather than losing it
			_, _ = w.redis.ZAdd(ctx, DelayedSet, redis.Z{Score: float64(time.Now().Unix()), Member: taskJSON})
		}
	}
}
