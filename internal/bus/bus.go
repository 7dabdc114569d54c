// Package bus is the in-process event fanout for task lifecycle changes.
// The API layer streams it over SSE; a bounded ring lets late subscribers
// replay recent history.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is one task state change.
type Event struct {
	Seq    int64     `json:"seq"`
	Time   time.Time `json:"time"`
	TaskID string    `json:"task_id"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
}

const subscriberBuffer = 16

// Bus fans events out to subscribers. Slow subscribers drop events rather
// than stalling the pipeline.
type Bus struct {
	mu      sync.Mutex
	subs    map[int64]chan Event
	nextSub int64
	seq     int64
	ring    []Event
	ringCap int
	dropped int64
	log     zerolog.Logger
}

// New builds a bus retaining the last ringCap events for replay.
func New(ringCap int, log zerolog.Logger) *Bus {
	if ringCap <= 0 {
		ringCap = 256
	}
	return &Bus{
		subs:    make(map[int64]chan Event),
		ringCap: ringCap,
		log:     log.With().Str("component", "bus").Logger(),
	}
}

// Publish records and fans out one event.
func (b *Bus) Publish(taskID, state, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	ev := Event{
		Seq:    b.seq,
		Time:   time.Now().UTC(),
		TaskID: taskID,
		State:  state,
		Detail: detail,
	}

	b.ring = append(b.ring, ev)
	if len(b.ring) > b.ringCap {
		b.ring = b.ring[len(b.ring)-b.ringCap:]
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
			b.log.Debug().Int64("subscriber", id).Int64("seq", ev.Seq).Msg("subscriber slow, event dropped")
		}
	}
}

// Subscribe registers a listener. Events after afterSeq still held in the
// ring are returned for replay; pass 0 to skip history.
func (b *Bus) Subscribe(afterSeq int64) (id int64, ch <-chan Event, replay []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	c := make(chan Event, subscriberBuffer)
	b.subs[b.nextSub] = c

	if afterSeq > 0 {
		for _, ev := range b.ring {
			if ev.Seq > afterSeq {
				replay = append(replay, ev)
			}
		}
	}
	return b.nextSub, c, replay
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (b *Bus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Subscribers reports the current listener count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
