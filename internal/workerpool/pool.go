// Package workerpool implements the bounded worker pool of SPEC_FULL §4.7:
// a fixed set of worker goroutines draining a FIFO task queue, with optional
// per-worker CPU-affinity pinning and a group-completion signal for
// join-style waits.
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zvecio/zvec/pkg/observability"
)

// Task is one unit of work submitted to the pool.
type Task func()

type queuedTask struct {
	fn    Task
	group *Group
}

// Pool runs Size worker goroutines that each loop popping tasks off a single
// shared FIFO channel until Close is called.
type Pool struct {
	size    int
	tasks   chan queuedTask
	wg      sync.WaitGroup
	active  int32
	pending int32

	stopping int32

	log     *observability.Logger
	metrics *observability.Metrics
}

// Config configures pool construction.
type Config struct {
	Size    int
	Bind    bool // pin worker i to CPU i % NumCPU, Linux-only (§4.7)
	Metrics *observability.Metrics
}

// New starts a pool of Config.Size workers immediately.
func New(cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = runtime.NumCPU()
	}
	p := &Pool{
		size:    cfg.Size,
		tasks:   make(chan queuedTask, cfg.Size*4),
		log:     observability.GetGlobalLogger().WithField("component", "workerpool"),
		metrics: cfg.Metrics,
	}
	p.wg.Add(cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		go p.runWorker(i, cfg.Bind)
	}
	return p
}

func (p *Pool) runWorker(index int, bind bool) {
	defer p.wg.Done()
	if bind {
		runtime.LockOSThread()
		if err := bindToCPU(index % runtime.NumCPU()); err != nil {
			p.log.Warn("workerpool: cpu pinning failed", map[string]interface{}{"worker": index, "error": err.Error()})
		}
	}

	for qt := range p.tasks {
		atomic.AddInt32(&p.pending, -1)
		atomic.AddInt32(&p.active, 1)
		p.runTask(qt)
		atomic.AddInt32(&p.active, -1)
	}
}

func (p *Pool) runTask(qt queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("workerpool: task panicked", map[string]interface{}{"recovered": r})
		}
		if qt.group != nil {
			qt.group.notify()
		}
	}()
	qt.fn()
}

// Submit enqueues fn for execution by some worker. If group is non-nil, the
// group's counter is incremented before enqueue and notified after fn runs
// (or panics) so group.Wait() observes exactly one notification per task.
func (p *Pool) Submit(fn Task, group *Group) {
	if group != nil {
		group.add(1)
	}
	atomic.AddInt32(&p.pending, 1)
	if p.metrics != nil {
		p.metrics.UpdateWorkerPoolState(int(atomic.LoadInt32(&p.pending)), int(atomic.LoadInt32(&p.active)))
	}
	p.tasks <- queuedTask{fn: fn, group: group}
}

// Unbind resets the affinity mask of the calling OS thread to all CPUs.
// Worker threads pinned at construction (Bind: true) keep their binding.
func (p *Pool) Unbind() error {
	return unbindCPU(runtime.NumCPU())
}

// ActiveCount returns the number of workers currently executing a task.
func (p *Pool) ActiveCount() int { return int(atomic.LoadInt32(&p.active)) }

// PendingCount returns the number of tasks still waiting in the queue.
func (p *Pool) PendingCount() int { return int(atomic.LoadInt32(&p.pending)) }

// Close stops accepting new tasks and blocks until every worker has drained
// the queue and exited.
func (p *Pool) Close() {
	if !atomic.CompareAndSwapInt32(&p.stopping, 0, 1) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}

// Group tracks completion of a batch of tasks submitted to a Pool, mirroring
// the pool's own "control/group signal" described in §4.7: every task
// completion (success or panic) notifies the group exactly once.
type Group struct {
	wg            sync.WaitGroup
	notifications int64
}

// NewGroup creates an empty completion group.
func NewGroup() *Group { return &Group{} }

func (g *Group) add(n int) { g.wg.Add(n) }

func (g *Group) notify() {
	atomic.AddInt64(&g.notifications, 1)
	g.wg.Done()
}

// Wait blocks until every task submitted with this group has notified.
func (g *Group) Wait() { g.wg.Wait() }

// Notifications returns how many tasks have notified this group so far.
func (g *Group) Notifications() int64 { return atomic.LoadInt64(&g.notifications) }
