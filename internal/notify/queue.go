// Package notify implements the short-lived notification queue. Each
// notification owns its own expiry timer; dismissing one never touches the
// others.
package notify

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/zenith-finance-go/internal/domain"
)

// DefaultLifetime is how long a notification stays visible.
const DefaultLifetime = 3 * time.Second

// Timer is the part of *time.Timer the queue needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so tests can fire expiries by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

// Listener receives the queue contents after every change.
type Listener func([]domain.Notification)

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.lifetime = d
		}
	}
}

// WithIDs replaces the uuid generator.
func WithIDs(next func() string) Option {
	return func(q *Queue) { q.nextID = next }
}

type item struct {
	n     domain.Notification
	timer Timer
}

// Queue holds notifications in enqueue order.
type Queue struct {
	mu        sync.Mutex
	items     []item
	listeners map[int]Listener
	nextSub   int
	closed    bool

	clock    Clock
	lifetime time.Duration
	nextID   func() string
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		listeners: make(map[int]Listener),
		clock:     RealClock,
		lifetime:  DefaultLifetime,
		nextID:    uuid.NewString,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Push appends a notification and schedules its expiry.
func (q *Queue) Push(message string, severity domain.Severity) domain.Notification {
	q.mu.Lock()
	n := domain.Notification{
		ID:        q.nextID(),
		Message:   message,
		Severity:  severity,
		CreatedAt: q.clock.Now(),
	}
	if q.closed {
		q.mu.Unlock()
		return n
	}
	id := n.ID
	t := q.clock.AfterFunc(q.lifetime, func() { q.expire(id) })
	q.items = append(q.items, item{n: n, timer: t})
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	notifyAll(listeners, snapshot)
	return n
}

// Dismiss removes the notification and cancels its timer. Unknown ids are
// ignored.
func (q *Queue) Dismiss(id string) bool {
	return q.remove(id, true)
}

func (q *Queue) expire(id string) {
	q.remove(id, false)
}

func (q *Queue) remove(id string, stop bool) bool {
	q.mu.Lock()
	i := slices.IndexFunc(q.items, func(it item) bool { return it.n.ID == id })
	if i < 0 {
		q.mu.Unlock()
		return false
	}
	if stop {
		q.items[i].timer.Stop()
	}
	q.items = slices.Delete(q.items, i, i+1)
	snapshot, listeners := q.snapshotLocked()
	q.mu.Unlock()

	notifyAll(listeners, snapshot)
	return true
}

// List returns the live notifications in enqueue order.
func (q *Queue) List() []domain.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out, _ := q.snapshotLocked()
	return out
}

// Subscribe registers fn and returns a function that removes it.
func (q *Queue) Subscribe(fn Listener) (unsubscribe func()) {
	q.mu.Lock()
	id := q.nextSub
	q.nextSub++
	q.listeners[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.listeners, id)
		q.mu.Unlock()
	}
}

// Close stops every pending timer and drops the contents.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		it.timer.Stop()
	}
	q.items = nil
	q.closed = true
}

func (q *Queue) snapshotLocked() ([]domain.Notification, []Listener) {
	out := make([]domain.Notification, len(q.items))
	for i, it := range q.items {
		out[i] = it.n
	}
	ls := make([]Listener, 0, len(q.listeners))
	for _, id := range slices.Sorted(maps.Keys(q.listeners)) {
		ls = append(ls, q.listeners[id])
	}
	return out, ls
}

func notifyAll(listeners []Listener, snapshot []domain.Notification) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}
