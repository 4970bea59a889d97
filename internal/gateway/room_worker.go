package gateway

import (
	"runtime/debug"
	"time"

	"github.com/sasachat/sasachat/internal/metrics"
	"github.com/sasachat/sasachat/pkg/log"
)

type task struct {
	op   string
	fn   func()
	done chan struct{}
}

// roomWorker runs the tasks of one room in submission order.
type roomWorker struct {
	roomID  string
	tasks   chan task
	pending int // guarded by Gateway.mu
}

// submit queues fn on the room's worker and waits until it has run.
func (g *Gateway) submit(roomID, op string, fn func()) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return ErrClosed
	}
	w, ok := g.workers[roomID]
	if !ok {
		w = &roomWorker{roomID: roomID, tasks: make(chan task, g.config.QueueSize)}
		g.workers[roomID] = w
		g.wg.Add(1)
		go g.runWorker(w)
	}
	w.pending++
	g.mu.Unlock()

	t := task{op: op, fn: fn, done: make(chan struct{})}
	select {
	case w.tasks <- t:
	case <-g.stop:
		return ErrClosed
	}

	select {
	case <-t.done:
		return nil
	case <-g.stop:
		return ErrClosed
	}
}

func (g *Gateway) runWorker(w *roomWorker) {
	defer g.wg.Done()
	metrics.RoomWorkersActive.Inc()
	defer metrics.RoomWorkersActive.Dec()

	idle := time.NewTimer(g.config.WorkerIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case t := <-w.tasks:
			g.execute(w.roomID, t)

			g.mu.Lock()
			w.pending--
			g.mu.Unlock()

			idle.Reset(g.config.WorkerIdleTimeout)

		case <-idle.C:
			// pending is raised under the same lock before a task is queued,
			// so nothing can be lost between this check and the delete.
			g.mu.Lock()
			if w.pending == 0 && g.registry.Count(w.roomID) == 0 {
				delete(g.workers, w.roomID)
				g.mu.Unlock()
				return
			}
			g.mu.Unlock()
			idle.Reset(g.config.WorkerIdleTimeout)

		case <-g.stop:
			return
		}
	}
}

func (g *Gateway) execute(roomID string, t task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.TaskPanicsTotal.Inc()
			l := log.L()
			l.Error().
				Str(log.FieldRoomID, roomID).
				Str("op", t.op).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("room task panicked")
		}
		metrics.TaskDuration.WithLabelValues(t.op).Observe(time.Since(start).Seconds())
		close(t.done)
	}()

	t.fn()
}

// Workers returns the number of running room workers.
func (g *Gateway) Workers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.workers)
}
