// Package deferred lets code running inside a request schedule work that must
// only start once the response has been finalized. The HTTP layer installs a
// Queue per request and flushes it after the handler chain returns; callers
// outside an HTTP request run the work immediately.
package deferred

import (
	"context"
	"sync"
)

// Task is a unit of work run after the response. The context it receives is
// detached from the request and is never cancelled by the client.
type Task func(ctx context.Context)

type queueKey struct{}

// Queue collects tasks registered during one request.
type Queue struct {
	mu    sync.Mutex
	tasks []Task
	done  bool
}

// WithQueue returns a child context carrying a fresh Queue.
func WithQueue(ctx context.Context) (context.Context, *Queue) {
	q := &Queue{}
	return context.WithValue(ctx, queueKey{}, q), q
}

// FromContext returns the Queue installed in ctx, if any.
func FromContext(ctx context.Context) (*Queue, bool) {
	q, ok := ctx.Value(queueKey{}).(*Queue)
	return q, ok
}

// Schedule registers task on the request queue found in ctx. Without a queue,
// or once the queue was flushed, the task runs on a new goroutine right away.
func Schedule(ctx context.Context, task Task) {
	if task == nil {
		return
	}
	if q, ok := FromContext(ctx); ok && q.add(task) {
		return
	}
	go task(context.WithoutCancel(ctx))
}

func (q *Queue) add(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.done {
		return false
	}
	q.tasks = append(q.tasks, task)
	return true
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Flush starts every pending task on its own goroutine with a detached
// context and marks the queue closed. It returns a WaitGroup for callers that
// need to observe completion (tests, graceful shutdown).
func (q *Queue) Flush(ctx context.Context) *sync.WaitGroup {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.done = true
	q.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			task(detached)
		}(task)
	}
	return &wg
}
