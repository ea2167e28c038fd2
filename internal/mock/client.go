// Package mock simulates the external WhatsApp client for demo and
// development: a scripted authentication timeline followed by periodic
// inbound traffic over fixture chats. Queries are served from the same
// in-memory fixtures, so the dashboard is fully usable without a real
// session.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/wweb"
)

var errUnknownChat = errors.New("chat not found")

type fixtureContact struct {
	chatID string
	name   string
	lines  []string
}

var contacts = []fixtureContact{
	{
		chatID: "491701111111@c.us", name: "Ada Lovelace",
		lines: []string{
			"Did you see the build go green?",
			"Lunch at the usual place?",
			"Sending over the notes now.",
		},
	},
	{
		chatID: "491702222222@c.us", name: "Grace Hopper",
		lines: []string{
			"The demo machine is acting up again.",
			"Ship it.",
			"Can you review my patch before standup?",
		},
	},
	{
		chatID: "120363000000000001@g.us", name: "Weekend Hikers",
		lines: []string{
			"Trailhead at 8, don't be late!",
			"Weather looks rough for Saturday.",
			"Who's bringing the map this time?",
		},
	},
	{
		chatID: "491703333333@c.us", name: "Linus T.",
		lines: []string{
			"Talk is cheap.",
			"Rebased and pushed.",
		},
	},
}

type Client struct {
	mu       sync.Mutex
	chats    []wweb.Chat
	messages map[string][]wweb.Message
	nextID   int
	started  bool

	events    chan wweb.Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient() *Client {
	now := time.Now().Unix()
	c := &Client{
		messages: make(map[string][]wweb.Message),
		events:   make(chan wweb.Event, 64),
		done:     make(chan struct{}),
	}

	for i, contact := range contacts {
		chat := wweb.Chat{
			ID:        contact.chatID,
			Name:      contact.name,
			IsGroup:   contact.chatID[len(contact.chatID)-5:] == "@g.us",
			Timestamp: now - int64(i*900),
			Pinned:    i == 0,
		}
		// Seed a little back-history per chat.
		for j, line := range contact.lines {
			msg := c.buildMessage(chat.ID, contact.name, line, false)
			msg.Timestamp = chat.Timestamp - int64((len(contact.lines)-j)*60)
			c.messages[chat.ID] = append(c.messages[chat.ID], msg)
			chat.LastMessage = line
		}
		c.chats = append(c.chats, chat)
	}

	// One silent chat with no recorded activity; sorts last.
	c.chats = append(c.chats, wweb.Chat{
		ID:   "491709999999@c.us",
		Name: "Old Number",
	})

	return c
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("mock client already started")
	}
	c.started = true
	c.mu.Unlock()

	go c.run(ctx)
	return nil
}

// Stop ends the timeline and traffic generation. The event channel is
// not closed, only quiesced; closing it would race with in-flight emits.
func (c *Client) Stop(ctx context.Context) error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Client) Events() <-chan wweb.Event {
	return c.events
}

// run plays the authentication timeline, then generates inbound traffic.
func (c *Client) run(ctx context.Context) {
	timeline := []struct {
		after time.Duration
		event wweb.Event
	}{
		{500 * time.Millisecond, wweb.Event{Type: wweb.EventQR, QRCode: "1@mockqr-AAAA,BBBB,CCCC"}},
		{2 * time.Second, wweb.Event{Type: wweb.EventQR, QRCode: "1@mockqr-DDDD,EEEE,FFFF"}},
		{2 * time.Second, wweb.Event{Type: wweb.EventAuthenticated}},
		{time.Second, wweb.Event{Type: wweb.EventReady}},
	}

	for _, step := range timeline {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-time.After(step.after):
			if !c.emit(step.event) {
				return
			}
		}
	}

	ticker := time.NewTicker(7 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			contact := contacts[rand.Intn(len(contacts))]
			line := contact.lines[rand.Intn(len(contact.lines))]
			msg := c.record(contact.chatID, contact.name, line, false)
			if !c.emit(wweb.Event{Type: wweb.EventMessage, Message: &msg}) {
				return
			}
		}
	}
}

func (c *Client) emit(ev wweb.Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) buildMessage(chatID, senderName, body string, fromMe bool) wweb.Message {
	c.nextID++
	msg := wweb.Message{
		ID:        fmt.Sprintf("mock-msg-%d", c.nextID),
		ChatID:    chatID,
		Body:      body,
		Type:      "chat",
		Timestamp: time.Now().Unix(),
		FromMe:    fromMe,
	}
	if fromMe {
		msg.From = "self@c.us"
		msg.To = chatID
		msg.Ack = 1
	} else {
		msg.From = chatID
		msg.To = "self@c.us"
		msg.SenderName = senderName
	}
	return msg
}

// record stores a new message and refreshes the owning chat's preview,
// unread count and activity timestamp.
func (c *Client) record(chatID, senderName, body string, fromMe bool) wweb.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := c.buildMessage(chatID, senderName, body, fromMe)
	c.messages[chatID] = append(c.messages[chatID], msg)
	for i := range c.chats {
		if c.chats[i].ID != chatID {
			continue
		}
		c.chats[i].LastMessage = body
		c.chats[i].Timestamp = msg.Timestamp
		if fromMe {
			c.chats[i].UnreadCount = 0
		} else {
			c.chats[i].UnreadCount++
		}
		break
	}
	return msg
}

func (c *Client) Info(ctx context.Context) (*session.Info, error) {
	return &session.Info{
		Name:     "Mock Account",
		ID:       "self@c.us",
		Platform: "mock",
	}, nil
}

func (c *Client) Chats(ctx context.Context) ([]wweb.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chats := make([]wweb.Chat, len(c.chats))
	copy(chats, c.chats)
	return chats, nil
}

func (c *Client) Chat(ctx context.Context, chatID string) (*wweb.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, chat := range c.chats {
		if chat.ID == chatID {
			found := chat
			return &found, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errUnknownChat, chatID)
}

// Messages returns up to limit of the chat's most recent messages, in
// stored (oldest first) order.
func (c *Client) Messages(ctx context.Context, chatID string, limit int) ([]wweb.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.messages[chatID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownChat, chatID)
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]wweb.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *Client) Send(ctx context.Context, chatID, text string) (*wweb.Message, error) {
	c.mu.Lock()
	known := false
	for _, chat := range c.chats {
		if chat.ID == chatID {
			known = true
			break
		}
	}
	c.mu.Unlock()
	if !known {
		return nil, fmt.Errorf("%w: %s", errUnknownChat, chatID)
	}

	msg := c.record(chatID, "", text, true)
	c.emit(wweb.Event{Type: wweb.EventMessage, Message: &msg})
	return &msg, nil
}

var _ wweb.Client = (*Client)(nil)
