// Package schedule provides the single logical thread that every game
// mutation and deferred callback runs on.
package schedule

import (
	"sync"
	"time"
)

// Scheduler runs callbacks on the game's logical thread.
type Scheduler interface {
	// After runs fn once, after d has elapsed. There is no cancellation
	// handle; callbacks re-check their own preconditions when they fire.
	After(d time.Duration, fn func())
	// Post runs fn on the logical thread as soon as possible.
	Post(fn func())
}

// Loop is a Scheduler backed by one goroutine that executes posted functions
// strictly in order. Timers hand their callbacks to the same goroutine, so no
// two callbacks ever run concurrently. The queue is unbounded, so Post never
// blocks, including from inside a callback.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewLoop creates a Loop and starts its goroutine.
//
// Postcondition: Returns a running Loop; Stop must be called to release it.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			select {
			case <-l.done:
				return
			default:
			}
			fn()
		}
	}
}

// Post queues fn for execution. Posts made after Stop are dropped.
//
// Precondition: fn must not be nil.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// After posts fn once d has elapsed.
//
// Precondition: fn must not be nil.
func (l *Loop) After(d time.Duration, fn func()) {
	if d <= 0 {
		l.Post(fn)
		return
	}
	time.AfterFunc(d, func() { l.Post(fn) })
}

// Do runs fn on the loop and blocks until it has returned. Do must not be
// called from inside a loop callback.
//
// Postcondition: fn has completed, or the loop was stopped before it ran.
func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
	case <-l.done:
	}
}

// Stop terminates the loop goroutine. Pending callbacks are discarded. Safe
// to call multiple times.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
}
