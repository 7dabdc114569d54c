package api

import (
	"context"
	"sort"
	"sync"

	"github.com/snarg/agrivoice/internal/bus"
)

// trackerCap bounds how many tasks the tracker remembers.
const trackerCap = 500

// Tracker folds the event stream into the latest known state per task, so
// the task listing endpoint has something to serve without a database.
type Tracker struct {
	mu   sync.RWMutex
	byID map[string]bus.Event
}

func NewTracker() *Tracker {
	return &Tracker{byID: make(map[string]bus.Event)}
}

// Run consumes the bus until ctx is cancelled. The ring replay covers
// events published before the subscription landed.
func (t *Tracker) Run(ctx context.Context, b *bus.Bus) {
	id, ch, replay := b.Subscribe(0)
	defer b.Unsubscribe(id)
	for _, ev := range replay {
		t.observe(ev)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			t.observe(ev)
		}
	}
}

func (t *Tracker) observe(ev bus.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[ev.TaskID] = ev
	if len(t.byID) > trackerCap {
		t.evictOldest()
	}
}

// evictOldest drops the task with the lowest sequence number. Called with
// the lock held.
func (t *Tracker) evictOldest() {
	var oldest string
	var oldestSeq int64 = -1
	for id, ev := range t.byID {
		if oldestSeq < 0 || ev.Seq < oldestSeq {
			oldest, oldestSeq = id, ev.Seq
		}
	}
	delete(t.byID, oldest)
}

// Tasks returns the known tasks, most recent activity first.
func (t *Tracker) Tasks() []bus.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]bus.Event, 0, len(t.byID))
	for _, ev := range t.byID {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out
}
