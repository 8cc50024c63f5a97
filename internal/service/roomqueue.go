package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"greenhouse_control/internal/logger"
)

const (
	defaultRoomQueueSize   = 64
	defaultRoomIdleTimeout = time.Minute
)

// RoomQueue runs submitted work one job at a time per room, in submission
// order. Each room gets a worker goroutine on first use; the worker exits
// after sitting idle with nothing pending.
type RoomQueue struct {
	mu      sync.Mutex
	workers map[string]*roomWorker
	size    int
	idle    time.Duration
	log     *logger.Logger
}

type roomWorker struct {
	jobs    chan *roomJob
	pending int // guarded by RoomQueue.mu
}

// Job states. A job is claimed exactly once: by the worker (running) or by
// the waiting caller whose context ended first (abandoned).
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

type roomJob struct {
	ctx   context.Context
	fn    func()
	done  chan struct{}
	state atomic.Int32
}

func NewRoomQueue(size int, idle time.Duration, log *logger.Logger) *RoomQueue {
	if size <= 0 {
		size = defaultRoomQueueSize
	}
	if idle <= 0 {
		idle = defaultRoomIdleTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RoomQueue{
		workers: make(map[string]*roomWorker),
		size:    size,
		idle:    idle,
		log:     log,
	}
}

// Do runs fn on the room's worker and waits for it. If ctx ends before fn
// starts, fn is skipped and Do returns ctx.Err(). Once fn has started, Do
// waits for it and returns nil.
func (q *RoomQueue) Do(ctx context.Context, room string, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	w, ok := q.workers[room]
	if !ok {
		w = &roomWorker{jobs: make(chan *roomJob, q.size)}
		q.workers[room] = w
		go q.run(room, w)
	}
	w.pending++
	q.mu.Unlock()

	job := &roomJob{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case w.jobs <- job:
	case <-ctx.Done():
		q.mu.Lock()
		w.pending--
		q.mu.Unlock()
		return ctx.Err()
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		if job.state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		<-job.done
	}
	if job.state.Load() != jobRunning {
		return ctx.Err()
	}
	return nil
}

// Rooms returns the number of rooms with a live worker.
func (q *RoomQueue) Rooms() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.workers)
}

func (q *RoomQueue) run(room string, w *roomWorker) {
	timer := time.NewTimer(q.idle)
	defer timer.Stop()

	for {
		select {
		case job := <-w.jobs:
			q.exec(room, job)
			q.mu.Lock()
			w.pending--
			q.mu.Unlock()
			timer.Reset(q.idle)

		case <-timer.C:
			q.mu.Lock()
			if w.pending == 0 {
				delete(q.workers, room)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			timer.Reset(q.idle)
		}
	}
}

func (q *RoomQueue) exec(room string, job *roomJob) {
	defer close(job.done)
	if job.ctx.Err() != nil {
		job.state.CompareAndSwap(jobQueued, jobAbandoned)
		return
	}
	if !job.state.CompareAndSwap(jobQueued, jobRunning) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("room_job_panic", "room", room, "panic", r)
		}
	}()
	job.fn()
}
