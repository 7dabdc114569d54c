package bus

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(8, zerolog.Nop())

	id, ch, replay := b.Subscribe(0)
	defer b.Unsubscribe(id)
	if len(replay) != 0 {
		t.Errorf("fresh subscribe replay = %d events", len(replay))
	}

	b.Publish("t1", "converting", "")
	ev := <-ch
	if ev.TaskID != "t1" || ev.State != "converting" || ev.Seq != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestReplayAfterSeq(t *testing.T) {
	b := New(8, zerolog.Nop())
	for i := 0; i < 5; i++ {
		b.Publish("t", "state", "")
	}

	id, _, replay := b.Subscribe(2)
	defer b.Unsubscribe(id)
	if len(replay) != 3 {
		t.Fatalf("replay = %d events, want 3 (seq 3..5)", len(replay))
	}
	if replay[0].Seq != 3 || replay[2].Seq != 5 {
		t.Errorf("replay seqs = %d..%d", replay[0].Seq, replay[2].Seq)
	}
}

func TestRingEviction(t *testing.T) {
	b := New(4, zerolog.Nop())
	for i := 0; i < 10; i++ {
		b.Publish("t", "state", "")
	}
	_, _, replay := b.Subscribe(1)
	if len(replay) != 4 {
		t.Errorf("replay = %d events, want ring cap 4", len(replay))
	}
	if replay[0].Seq != 7 {
		t.Errorf("oldest retained seq = %d, want 7", replay[0].Seq)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New(8, zerolog.Nop())
	id, ch, _ := b.Subscribe(0)
	defer b.Unsubscribe(id)

	// Never drain: buffer fills, then publishes drop instead of blocking.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish("t", "state", "")
	}
	if b.Dropped() != 5 {
		t.Errorf("dropped = %d, want 5", b.Dropped())
	}
	if len(ch) != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBuffer)
	}
}
