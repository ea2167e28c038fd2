package mock

import (
	"context"
	"testing"
	"time"

	"github.com/wadash/backend/internal/wweb"
)

func recvEvent(t *testing.T, c *Client) wweb.Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("event channel closed unexpectedly")
		}
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return wweb.Event{}
}

func TestTimelineReachesReady(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	want := []wweb.EventType{wweb.EventQR, wweb.EventQR, wweb.EventAuthenticated, wweb.EventReady}
	for i, wt := range want {
		ev := recvEvent(t, c)
		if ev.Type != wt {
			t.Fatalf("event[%d] = %v, want %v", i, ev.Type, wt)
		}
		if wt == wweb.EventQR && ev.QRCode == "" {
			t.Error("QR event without payload")
		}
	}
}

func TestStartTwiceFails(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Stop(context.Background())

	if err := c.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}
}

func TestChatsFixtures(t *testing.T) {
	c := NewClient()

	chats, err := c.Chats(context.Background())
	if err != nil {
		t.Fatalf("Chats: %v", err)
	}
	if len(chats) != len(contacts)+1 {
		t.Fatalf("got %d chats, want %d", len(chats), len(contacts)+1)
	}

	var silent *wweb.Chat
	groups := 0
	for i := range chats {
		if chats[i].Timestamp == 0 {
			silent = &chats[i]
		}
		if chats[i].IsGroup {
			groups++
		}
	}
	if silent == nil {
		t.Error("expected one chat with no recorded activity")
	}
	if groups != 1 {
		t.Errorf("got %d group chats, want 1", groups)
	}
}

func TestChatLookup(t *testing.T) {
	c := NewClient()

	chat, err := c.Chat(context.Background(), contacts[0].chatID)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if chat.Name != contacts[0].name {
		t.Errorf("chat name = %q, want %q", chat.Name, contacts[0].name)
	}

	if _, err := c.Chat(context.Background(), "nope@c.us"); err == nil {
		t.Error("unknown chat should fail")
	}
}

func TestMessagesLimit(t *testing.T) {
	c := NewClient()
	id := contacts[0].chatID

	all, err := c.Messages(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(all) != len(contacts[0].lines) {
		t.Fatalf("got %d messages, want %d", len(all), len(contacts[0].lines))
	}

	limited, err := c.Messages(context.Background(), id, 2)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d messages, want 2", len(limited))
	}
	// The most recent messages are kept.
	if limited[1].ID != all[len(all)-1].ID {
		t.Error("limit did not keep the most recent messages")
	}
}

func TestSendRecordsAndEmits(t *testing.T) {
	c := NewClient()
	id := contacts[1].chatID

	msg, err := c.Send(context.Background(), id, "hello from test")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !msg.FromMe || msg.ChatID != id {
		t.Errorf("sent message = %+v", msg)
	}

	ev := recvEvent(t, c)
	if ev.Type != wweb.EventMessage || ev.Message == nil || ev.Message.ID != msg.ID {
		t.Errorf("expected message event for %s, got %+v", msg.ID, ev)
	}

	msgs, err := c.Messages(context.Background(), id, 0)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if msgs[len(msgs)-1].ID != msg.ID {
		t.Error("sent message not recorded in history")
	}

	chat, err := c.Chat(context.Background(), id)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if chat.LastMessage != "hello from test" {
		t.Errorf("chat preview = %q, want sent text", chat.LastMessage)
	}

	if _, err := c.Send(context.Background(), "nope@c.us", "x"); err == nil {
		t.Error("send to unknown chat should fail")
	}
}
