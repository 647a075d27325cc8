// Package bridge holds the pending-notification queue between the platform
// notification listener and the reconciliation pipeline. The reconciler only
// sees the Bridge contract; the in-process Queue is fed by the ingest API.
package bridge

import (
	"sync"
	"time"

	"github.com/thkim0515/gagyebu/internal/checksum"
	"github.com/thkim0515/gagyebu/internal/models"
)

// Bridge is the collaborator surface consumed by the trigger scheduler.
// Pending never removes items; the queue is drained only by Clear(n), once a
// reconciliation run has completed successfully. Draining by count rather
// than wholesale means a notification arriving between Pending and Clear is
// kept for the next run instead of being wiped unprocessed.
type Bridge interface {
	HasAccess() bool
	Pending() []models.RawNotification
	Clear(n int)
}

// duplicateWindow fences off the same alert relayed by a second app
// (e.g. a bank app and a messenger both announcing one payment).
const duplicateWindow = 3 * time.Second

type seenEntry struct {
	hash string
	at   time.Time
}

// Queue is an in-memory Bridge with a short content-hash duplicate fence.
type Queue struct {
	mu      sync.Mutex
	pending []models.RawNotification
	recent  []seenEntry
	now     func() time.Time
}

// NewQueue returns an empty notification queue.
func NewQueue() *Queue {
	return &Queue{now: time.Now}
}

// NewQueueWithClock returns a queue with an injected clock, for tests.
func NewQueueWithClock(now func() time.Time) *Queue {
	return &Queue{now: now}
}

// Push appends a notification unless an identical one arrived within the
// duplicate window. It reports whether the notification was queued.
func (q *Queue) Push(n models.RawNotification) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	hash := checksum.Text(n.Title + n.Text)

	kept := q.recent[:0]
	for _, e := range q.recent {
		if now.Sub(e.at) < duplicateWindow {
			kept = append(kept, e)
		}
	}
	q.recent = kept

	for _, e := range q.recent {
		if e.hash == hash {
			return false
		}
	}

	q.recent = append(q.recent, seenEntry{hash: hash, at: now})
	q.pending = append(q.pending, n)
	return true
}

// HasAccess reports whether the queue accepts notifications. The in-process
// queue always does; a real platform bridge gates on OS permission.
func (q *Queue) HasAccess() bool {
	return true
}

// Pending returns a copy of the queued notifications in arrival order.
func (q *Queue) Pending() []models.RawNotification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.RawNotification, len(q.pending))
	copy(out, q.pending)
	return out
}

// Clear drops the first n pending notifications, the ones a completed run
// took via Pending. Anything queued after that snapshot stays for the next
// trigger.
func (q *Queue) Clear(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n >= len(q.pending) {
		q.pending = nil
		return
	}
	q.pending = append([]models.RawNotification(nil), q.pending[n:]...)
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
