// Package dispatch runs side effects after a store commit. Enqueue never
// blocks and never reports the task's outcome to the caller: a failing or
// dropped task cannot change the result of the action that produced it.
package dispatch

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"

	"teambot/log"
	"teambot/metrics"
)

// Task is one post-commit side effect. Tasks sharing a Key run in the order
// they were enqueued.
type Task struct {
	Key  string
	Name string
	Run  func(ctx context.Context) error
}

type Queue struct {
	mu     sync.RWMutex
	closed bool
	shards []chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts workers goroutines, each owning a buffer of depth tasks.
func New(workers, depth int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if depth <= 0 {
		depth = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		shards: make([]chan Task, workers),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range q.shards {
		q.shards[i] = make(chan Task, depth)
		q.wg.Add(1)
		go q.work(q.shards[i])
	}
	return q
}

// Enqueue schedules t and reports whether it was accepted.
func (q *Queue) Enqueue(t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(t, "queue closed")
		return false
	}

	select {
	case q.shards[q.shard(t.Key)] <- t:
		return true
	default:
		q.drop(t, "queue full")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish. If ctx
// ends first, running tasks are cancelled and the remaining ones skipped.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, ch := range q.shards {
			close(ch)
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(q.shards)))
}

func (q *Queue) work(ch <-chan Task) {
	defer q.wg.Done()
	for t := range ch {
		if q.ctx.Err() != nil {
			q.drop(t, "queue cancelled")
			continue
		}
		q.run(t)
	}
}

func (q *Queue) run(t Task) {
	logger := log.Logger.With(zap.String("task", t.Name), zap.String("key", t.Key))

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				logger.Error("task panicked", zap.ByteString("stack", debug.Stack()))
			}
		}()
		return t.Run(q.ctx)
	}()

	if err != nil {
		metrics.SideEffectsTotal.WithLabelValues(t.Name, "error").Inc()
		logger.Warn("side effect failed", zap.Error(err))
		return
	}
	metrics.SideEffectsTotal.WithLabelValues(t.Name, "ok").Inc()
}

func (q *Queue) drop(t Task, reason string) {
	metrics.SideEffectsDropped.Inc()
	log.Logger.Warn("side effect dropped", zap.String("task", t.Name), zap.String("key", t.Key), zap.String("reason", reason))
}
