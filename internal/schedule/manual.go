package schedule

import (
	"sort"
	"time"
)

type pending struct {
	due time.Duration
	seq int
	fn  func()
}

// Manual is a synchronous Scheduler for tests and simulations. Nothing runs
// until the owner advances its virtual clock.
//
// Manual is not safe for concurrent use.
type Manual struct {
	now   time.Duration
	seq   int
	queue []pending
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// After queues fn to run once the virtual clock reaches now+d.
func (m *Manual) After(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	m.seq++
	m.queue = append(m.queue, pending{due: m.now + d, seq: m.seq, fn: fn})
}

// Post runs fn immediately on the caller's goroutine.
func (m *Manual) Post(fn func()) {
	fn()
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Duration {
	return m.now
}

// Pending returns the number of queued callbacks.
func (m *Manual) Pending() int {
	return len(m.queue)
}

// Advance moves the virtual clock forward by d, running every callback that
// falls due in order of due time, then scheduling order. Callbacks queued by
// running callbacks are honoured when they fall inside the window.
//
// Postcondition: Now() has advanced by d; no queued callback is due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		next, ok := m.popDue(target)
		if !ok {
			break
		}
		m.now = next.due
		next.fn()
	}
	m.now = target
}

// RunAll runs queued callbacks in due order until the queue is empty or
// limit callbacks have run. It returns the number of callbacks executed.
//
// Precondition: limit > 0.
func (m *Manual) RunAll(limit int) int {
	ran := 0
	for ran < limit && len(m.queue) > 0 {
		next, _ := m.popDue(m.earliest())
		if next.due > m.now {
			m.now = next.due
		}
		next.fn()
		ran++
	}
	return ran
}

func (m *Manual) earliest() time.Duration {
	e := m.queue[0].due
	for _, p := range m.queue[1:] {
		if p.due < e {
			e = p.due
		}
	}
	return e
}

func (m *Manual) popDue(limit time.Duration) (pending, bool) {
	if len(m.queue) == 0 {
		return pending{}, false
	}
	sort.SliceStable(m.queue, func(i, j int) bool {
		if m.queue[i].due != m.queue[j].due {
			return m.queue[i].due < m.queue[j].due
		}
		return m.queue[i].seq < m.queue[j].seq
	})
	head := m.queue[0]
	if head.due > limit {
		return pending{}, false
	}
	m.queue = m.queue[1:]
	return head, true
}
