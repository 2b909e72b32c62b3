// Package loop runs a single-goroutine cooperative scheduler. Mutation
// notifications, idle callbacks, timers and UI events all post work here, so
// engine state touched only from loop tasks needs no locking.
//
// Idle work runs when the task queue is empty. Because a host may stay busy
// indefinitely, every idle callback also carries a fallback timer: after
// FallbackDelay it is promoted to an ordinary task, so idle work is
// best-effort but never starved forever.
package loop

import (
	"sync"
	"time"
)

// Config controls scheduler timing.
type Config struct {
	// IdleSlice is the deadline granted to one idle callback. Default: 10ms.
	IdleSlice time.Duration
	// FallbackDelay promotes starved idle work to the task queue. Default: 250ms.
	FallbackDelay time.Duration
}

func (c *Config) defaults() {
	if c.IdleSlice <= 0 {
		c.IdleSlice = 10 * time.Millisecond
	}
	if c.FallbackDelay <= 0 {
		c.FallbackDelay = 250 * time.Millisecond
	}
}

// IdleFunc is an idle callback. Work should stop at the deadline.
type IdleFunc func(deadline time.Time)

type idleEntry struct {
	fn       IdleFunc
	promoted bool
	timer    *time.Timer
}

// Loop is the scheduler. Create with New, start with Run (usually in its own
// goroutine), stop with Stop.
type Loop struct {
	cfg Config

	// Now is the clock seam. Tests replace it; production leaves time.Now.
	Now func() time.Time

	mu    sync.Mutex
	tasks []func()
	idle  []*idleEntry
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// New creates a stopped Loop.
func New(cfg Config) *Loop {
	cfg.defaults()
	return &Loop{
		cfg:  cfg,
		Now:  time.Now,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Post queues fn as an ordinary task. Safe to call from inside a task.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
}

// Call posts fn and blocks until it has run, so other goroutines can read
// loop-owned state without locks. Returns false, without fn having run, if
// the loop stops first. Must not be called from inside a task.
func (l *Loop) Call(fn func()) bool {
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-l.done:
		// The loop may have run fn as its final task.
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// PostIdle queues fn as idle work with the fallback promotion timer.
func (l *Loop) PostIdle(fn IdleFunc) {
	e := &idleEntry{fn: fn}
	e.timer = time.AfterFunc(l.cfg.FallbackDelay, func() { l.promote(e) })
	l.mu.Lock()
	l.idle = append(l.idle, e)
	l.mu.Unlock()
	l.signal()
}

// After schedules fn as a task after d.
func (l *Loop) After(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		select {
		case <-l.stop:
		default:
			l.Post(fn)
		}
	})
}

// Every schedules fn as a task on a fixed cadence. The returned func stops
// the cadence.
func (l *Loop) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	stopped := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				l.Post(fn)
			case <-stopped:
				return
			case <-l.stop:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(stopped)
	}
}

// Run executes tasks until Stop. Tasks run before idle work; idle work runs
// only when the task queue is empty.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		task, idle := l.next()
		switch {
		case task != nil:
			task()
		case idle != nil:
			idle(l.Now().Add(l.cfg.IdleSlice))
		default:
			select {
			case <-l.wake:
			case <-l.stop:
				return
			}
		}
		select {
		case <-l.stop:
			return
		default:
		}
	}
}

// Stop halts the loop and waits for the current task to finish.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}

func (l *Loop) next() (func(), IdleFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) > 0 {
		t := l.tasks[0]
		l.tasks = l.tasks[1:]
		return t, nil
	}
	if len(l.idle) > 0 {
		e := l.idle[0]
		l.idle = l.idle[1:]
		e.timer.Stop()
		return nil, e.fn
	}
	return nil, nil
}

func (l *Loop) promote(e *idleEntry) {
	l.mu.Lock()
	for i, cand := range l.idle {
		if cand == e {
			l.idle = append(l.idle[:i], l.idle[i+1:]...)
			e.promoted = true
			fn := e.fn
			now := l.Now
			slice := l.cfg.IdleSlice
			l.tasks = append(l.tasks, func() { fn(now().Add(slice)) })
			break
		}
	}
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
