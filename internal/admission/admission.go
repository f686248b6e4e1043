package admission

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vk/devfn/internal/ctxlog"
	"github.com/vk/devfn/internal/metrics"
)

// DefaultTimeout is how long a request waits in the queue before it is
// rejected.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is matched by errors returned when the queue wait expires.
var ErrTimeout = errors.New("timed out waiting for an admission slot")

// TimeoutError reports which task rejected a request and after how long.
type TimeoutError struct {
	Task   string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: %v after %s", e.Task, ErrTimeout, e.Waited)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// Limiter resolves the concurrency limit of a task. config.Concurrency
// implements it.
type Limiter interface {
	Limit(task string) int
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithMetrics makes the controller report running/queued gauges and
// admitted/rejected counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

type ticket struct {
	ready   chan struct{}
	elem    *list.Element
	granted bool
}

type taskState struct {
	running int
	queue   *list.List // of *ticket
}

// Controller is the per-task admission state machine. It is safe for
// concurrent use.
type Controller struct {
	mu      sync.Mutex
	tasks   map[string]*taskState
	limits  Limiter
	timeout time.Duration
	metrics *metrics.Metrics
}

// New creates a controller using limits for every task.
func New(limits Limiter, opts ...Option) *Controller {
	c := &Controller{
		tasks:   make(map[string]*taskState),
		limits:  limits,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limit returns the effective limit for a task. Limits below one are
// treated as one.
func (c *Controller) Limit(task string) int {
	return max(c.limits.Limit(task), 1)
}

// state returns the task's state, creating it on first use. c.mu must be held.
func (c *Controller) state(task string) *taskState {
	st, ok := c.tasks[task]
	if !ok {
		st = &taskState{queue: list.New()}
		c.tasks[task] = st
	}
	return st
}

// Acquire obtains an admission slot for task. It blocks while the task is
// saturated, for at most the configured timeout. The returned Slot must be
// released exactly once; a failed Acquire must not be released.
func (c *Controller) Acquire(ctx context.Context, task string) (*Slot, error) {
	logger := ctxlog.FromContext(ctx).With("task", task)
	limit := c.Limit(task)

	c.mu.Lock()
	st := c.state(task)
	if st.running < limit && st.queue.Len() == 0 {
		st.running++
		c.observe(task, st)
		c.mu.Unlock()
		c.admitted(task)
		return &Slot{c: c, task: task}, nil
	}

	t := &ticket{ready: make(chan struct{})}
	t.elem = st.queue.PushBack(t)
	c.observe(task, st)
	queued := st.queue.Len()
	c.mu.Unlock()
	logger.Debug("Task saturated, request queued.", "limit", limit, "queued", queued)

	start := time.Now()
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-t.ready:
		logger.Debug("Queued request admitted.", "waited", time.Since(start))
		c.admitted(task)
		return &Slot{c: c, task: task}, nil

	case <-timer.C:
		c.mu.Lock()
		if t.granted {
			// The handoff settled before the timeout could.
			c.mu.Unlock()
			c.admitted(task)
			return &Slot{c: c, task: task}, nil
		}
		st.queue.Remove(t.elem)
		c.observe(task, st)
		c.mu.Unlock()

		waited := time.Since(start)
		logger.Warn("Request rejected, no admission slot freed in time.", "limit", limit, "waited", waited)
		if c.metrics != nil {
			c.metrics.Rejected.WithLabelValues(task).Inc()
		}
		return nil, &TimeoutError{Task: task, Waited: waited}

	case <-ctx.Done():
		c.mu.Lock()
		if t.granted {
			c.releaseLocked(task, st)
		} else {
			st.queue.Remove(t.elem)
			c.observe(task, st)
		}
		c.mu.Unlock()
		logger.Debug("Queued request abandoned.", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// release frees one slot of task.
func (c *Controller) release(task string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(task, c.state(task))
}

// releaseLocked hands the slot to the oldest waiter, or decrements the
// running count when nobody waits. c.mu must be held.
func (c *Controller) releaseLocked(task string, st *taskState) {
	if front := st.queue.Front(); front != nil {
		t := st.queue.Remove(front).(*ticket)
		t.granted = true
		close(t.ready)
	} else {
		st.running--
	}
	c.observe(task, st)
}

// Stats returns the running and queued counts of task.
func (c *Controller) Stats(task string) (running, queued int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.tasks[task]; ok {
		return st.running, st.queue.Len()
	}
	return 0, 0
}

// observe publishes gauges for task. c.mu must be held.
func (c *Controller) observe(task string, st *taskState) {
	if c.metrics == nil {
		return
	}
	c.metrics.Running.WithLabelValues(task).Set(float64(st.running))
	c.metrics.Queued.WithLabelValues(task).Set(float64(st.queue.Len()))
}

func (c *Controller) admitted(task string) {
	if c.metrics != nil {
		c.metrics.Admitted.WithLabelValues(task).Inc()
	}
}

// Slot is a granted admission permit.
type Slot struct {
	c    *Controller
	task string
	once sync.Once
}

// Task returns the task name the slot belongs to.
func (s *Slot) Task() string { return s.task }

// Release returns the slot. Only the first call has an effect.
func (s *Slot) Release() {
	s.once.Do(func() { s.c.release(s.task) })
}
