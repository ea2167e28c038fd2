// Package stream replicates session-state changes and message events to
// every attached dashboard viewer. There is no cap on subscriber count;
// per-subscriber memory is bounded by the send buffer, and a subscriber
// that cannot drain it is dropped rather than allowed to stall the rest.
package stream

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/wweb"
)

const sendBuffer = 64

// Event is one framed push event: a name ("state" or "message") and its
// JSON payload, serialized once per publish.
type Event struct {
	Name string
	Data []byte
}

// Subscriber is one attached push connection. Events arrive on C in
// publish order; the channel is closed when the subscriber is removed.
type Subscriber struct {
	ch chan Event
}

func (s *Subscriber) C() <-chan Event {
	return s.ch
}

type Broadcaster struct {
	store *session.Store

	mu     sync.RWMutex
	subs   map[*Subscriber]bool
	closed bool
}

func NewBroadcaster(store *session.Store) *Broadcaster {
	return &Broadcaster{
		store: store,
		subs:  make(map[*Subscriber]bool),
	}
}

// Subscribe registers a new subscriber and queues the current state
// snapshot as its first event, so late joiners are not blind until the
// next transition.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, sendBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub
	}
	b.subs[sub] = true
	// Snapshot under the registry lock: a transition published after this
	// point is queued behind the snapshot, so the subscriber may see a
	// duplicate but never a stale picture.
	snap := b.store.Snapshot()
	if data, err := json.Marshal(&snap); err == nil {
		// Buffer is empty at this point, the send cannot block.
		sub.ch <- Event{Name: "state", Data: data}
	}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent:
// safe to call twice and safe for subscribers already gone.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// PublishState fans the given snapshot out to every subscriber.
func (b *Broadcaster) PublishState(snap session.State) {
	data, err := json.Marshal(&snap)
	if err != nil {
		log.Printf("broadcast: marshal state: %v", err)
		return
	}
	b.publish(Event{Name: "state", Data: data})
}

// PublishMessage fans a single message event out to every subscriber.
func (b *Broadcaster) PublishMessage(msg *wweb.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast: marshal message: %v", err)
		return
	}
	b.publish(Event{Name: "message", Data: data})
}

// publish sends under the read lock so no channel can be closed out from
// under it. Sends never block; a full buffer marks the subscriber for
// removal once the lock is released.
func (b *Broadcaster) publish(ev Event) {
	var slow []*Subscriber
	b.mu.RLock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		log.Printf("push subscriber too slow, disconnecting")
		b.Unsubscribe(sub)
	}
}

// SubscriberCount reports the number of attached subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscriber and rejects future ones. Used during
// process shutdown to end open push connections.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}
