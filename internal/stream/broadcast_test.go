package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/wweb"
)

// recvEvent pulls one event with a timeout so a broken broadcaster fails
// the test instead of hanging it.
func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C():
		if !ok {
			t.Fatal("subscriber channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func decodeState(t *testing.T, ev Event) session.State {
	t.Helper()
	if ev.Name != "state" {
		t.Fatalf("event name = %q, want state", ev.Name)
	}
	var st session.State
	if err := json.Unmarshal(ev.Data, &st); err != nil {
		t.Fatalf("decode state payload: %v", err)
	}
	return st
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	store := session.NewStore()
	store.Mutate(func(s *session.State) {
		s.Status = session.QR
		s.QRCode = "abc"
	})
	b := NewBroadcaster(store)

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	st := decodeState(t, recvEvent(t, sub))
	if st.Status != session.QR || st.QRCode != "abc" {
		t.Errorf("initial snapshot = %+v, want qr/abc", st)
	}
}

func TestPublishOrderPreserved(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	recvEvent(t, sub) // initial snapshot

	statuses := []session.Status{session.QR, session.Authenticated, session.Ready}
	for _, status := range statuses {
		snap := store.Mutate(func(s *session.State) { s.Status = status })
		b.PublishState(snap)
	}

	for _, want := range statuses {
		st := decodeState(t, recvEvent(t, sub))
		if st.Status != want {
			t.Errorf("status = %v, want %v", st.Status, want)
		}
	}
}

func TestLateJoinerSeesSnapshotNotHistory(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)

	// Two transitions before anyone subscribes.
	b.PublishState(store.Mutate(func(s *session.State) { s.Status = session.QR }))
	b.PublishState(store.Mutate(func(s *session.State) { s.Status = session.Ready }))

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	st := decodeState(t, recvEvent(t, sub))
	if st.Status != session.Ready {
		t.Errorf("late joiner snapshot = %v, want ready", st.Status)
	}

	// Next publish arrives after the snapshot.
	b.PublishState(store.Mutate(func(s *session.State) { s.Status = session.Disconnected }))
	st = decodeState(t, recvEvent(t, sub))
	if st.Status != session.Disconnected {
		t.Errorf("post-join event = %v, want disconnected", st.Status)
	}
}

func TestPublishMessage(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	recvEvent(t, sub) // initial snapshot

	b.PublishMessage(&wweb.Message{ID: "m1", ChatID: "c1", Body: "hi"})

	ev := recvEvent(t, sub)
	if ev.Name != "message" {
		t.Fatalf("event name = %q, want message", ev.Name)
	}
	var msg wweb.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.ID != "m1" || msg.Body != "hi" {
		t.Errorf("message = %+v, want m1/hi", msg)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)
	sub := b.Subscribe()
	other := b.Subscribe()
	recvEvent(t, other)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second removal must not panic

	// The other subscriber still receives events.
	b.PublishState(store.Mutate(func(s *session.State) { s.Status = session.QR }))
	st := decodeState(t, recvEvent(t, other))
	if st.Status != session.QR {
		t.Errorf("surviving subscriber got %v, want qr", st.Status)
	}
	if b.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", b.SubscriberCount())
	}
}

func TestSlowSubscriberDroppedWithoutAffectingOthers(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)

	slow := b.Subscribe() // never drained
	fast := b.Subscribe()
	recvEvent(t, fast)

	// Overflow the slow subscriber's buffer, draining the fast one as we
	// go so only the slow one falls behind.
	for i := 0; i < sendBuffer+5; i++ {
		b.PublishState(store.Snapshot())
		for {
			select {
			case <-fast.C():
				continue
			default:
			}
			break
		}
	}

	if b.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1 after slow drop", b.SubscriberCount())
	}

	// The slow subscriber's channel must have been closed.
	drained := 0
	for range slow.C() {
		drained++
		if drained > sendBuffer+10 {
			t.Fatal("slow subscriber channel never closed")
		}
	}

	// The fast subscriber is unaffected by the drop.
	b.PublishState(store.Mutate(func(s *session.State) { s.Status = session.Ready }))
	for {
		st := decodeState(t, recvEvent(t, fast))
		if st.Status == session.Ready {
			break
		}
	}
}

func TestCloseEndsAllSubscribers(t *testing.T) {
	store := session.NewStore()
	b := NewBroadcaster(store)
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	recvEvent(t, sub1)
	recvEvent(t, sub2)

	b.Close()

	if _, ok := <-sub1.C(); ok {
		t.Error("sub1 channel still open after Close")
	}
	if _, ok := <-sub2.C(); ok {
		t.Error("sub2 channel still open after Close")
	}

	// New subscribers after Close get a closed channel immediately.
	late := b.Subscribe()
	if _, ok := <-late.C(); ok {
		t.Error("post-Close subscriber channel should be closed")
	}

	// Publishing after Close must not panic.
	b.PublishState(store.Snapshot())
	b.Close()
}
