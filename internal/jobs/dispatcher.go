// Package jobs runs background work for the service. State sync from the
// canvas runs here so client calls never wait on embedding providers.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

// Dispatcher runs submitted tasks in the background, serialized per key.
// Submitting a new task for a key that already has one queued replaces
// the queued task; only the latest state of a key is worth syncing.
type Dispatcher struct {
	taskTimeout time.Duration

	mu    sync.Mutex
	lanes map[string]*lane
	wg    sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

type lane struct {
	pending Task
	name    string
	running bool
}

// NewDispatcher creates a Dispatcher. Each task runs with its own
// timeout derived from a background context, so request cancellation
// never aborts a sync in flight.
func NewDispatcher(taskTimeout time.Duration) *Dispatcher {
	if taskTimeout <= 0 {
		taskTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		taskTimeout: taskTimeout,
		lanes:       make(map[string]*lane),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Submit queues a task under key. Tasks with the same key never run
// concurrently. The call returns immediately; failures are logged, not
// returned.
func (d *Dispatcher) Submit(key, name string, task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.baseCtx.Done():
		log.Printf("dispatcher stopped, dropping task %s (%s)", name, key)
		return
	default:
	}

	l, ok := d.lanes[key]
	if !ok {
		l = &lane{}
		d.lanes[key] = l
	}
	if l.pending != nil {
		log.Printf("superseding queued task %s (%s)", l.name, key)
	}
	l.pending = task
	l.name = name

	if !l.running {
		l.running = true
		d.wg.Add(1)
		go d.drain(key, l)
	}
}

// drain runs queued tasks for one key until the lane is empty.
func (d *Dispatcher) drain(key string, l *lane) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		task, name := l.pending, l.name
		l.pending = nil
		if task == nil {
			l.running = false
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()

		ctx, cancel := context.WithTimeout(d.baseCtx, d.taskTimeout)
		if err := task(ctx); err != nil {
			log.Printf("background task %s (%s) failed: %v", name, key, err)
		}
		cancel()
	}
}

// Stop prevents new submissions, cancels running tasks, and waits for
// lanes to drain.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	log.Println("dispatcher shutdown complete")
}
