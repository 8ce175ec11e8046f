// Package timers keeps per-identity cancellable timers and one-shot delays.
package timers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oss377/maneBot/core/logger"
)

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Registry owns every timer of the process. Keyed timers are replaced on
// Arm and removed on Cancel or fire; a generation counter keeps a stale fire
// from removing a newer timer. Delays from After are independent.
type Registry struct {
	mu      sync.Mutex
	keyed   map[int64]entry
	delays  map[uint64]*time.Timer
	gen     uint64
	stopped bool
	wg      sync.WaitGroup
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		keyed:  make(map[int64]entry),
		delays: make(map[uint64]*time.Timer),
	}
}

// Arm schedules fn for id after d, replacing any timer already armed for id.
func (r *Registry) Arm(id int64, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if prev, ok := r.keyed[id]; ok {
		prev.timer.Stop()
	}
	r.gen++
	gen := r.gen
	r.keyed[id] = entry{gen: gen, timer: time.AfterFunc(d, func() {
		r.mu.Lock()
		cur, ok := r.keyed[id]
		if !ok || cur.gen != gen || r.stopped {
			r.mu.Unlock()
			return
		}
		delete(r.keyed, id)
		r.wg.Add(1)
		r.mu.Unlock()
		defer r.wg.Done()
		r.run("timer.fire", id, fn)
	})}
}

// Cancel stops the timer armed for id. It reports whether one was pending.
func (r *Registry) Cancel(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.keyed[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.keyed, id)
	return true
}

// After runs fn once after d. There is no way to cancel it short of Stop.
func (r *Registry) After(d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.gen++
	gen := r.gen
	r.delays[gen] = time.AfterFunc(d, func() {
		r.mu.Lock()
		if _, ok := r.delays[gen]; !ok || r.stopped {
			r.mu.Unlock()
			return
		}
		delete(r.delays, gen)
		r.wg.Add(1)
		r.mu.Unlock()
		defer r.wg.Done()
		r.run("delay.fire", 0, fn)
	})
}

// Pending returns the number of armed keyed timers and outstanding delays.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keyed) + len(r.delays)
}

// Stop cancels everything and waits for callbacks already running.
func (r *Registry) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	dropped := len(r.keyed) + len(r.delays)
	for id, e := range r.keyed {
		e.timer.Stop()
		delete(r.keyed, id)
	}
	for gen, t := range r.delays {
		t.Stop()
		delete(r.delays, gen)
	}
	r.mu.Unlock()
	r.wg.Wait()
	logger.Info(context.Background(), logger.CompTimers, "stop",
		slog.String("status", "ok"),
		slog.Int("count", dropped),
	)
}

func (r *Registry) run(event string, id int64, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(context.Background(), logger.CompTimers, event,
				slog.Int64("registrant_id", id),
				slog.Any("err", rec),
			)
		}
	}()
	fn()
}
