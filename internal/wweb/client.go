// Package wweb defines the contract with the external WhatsApp web
// client and the record shapes it exposes. The client itself is an
// external collaborator: implementations translate its lifecycle into
// typed events and forward queries, nothing more.
package wweb

import (
	"context"

	"github.com/wadash/backend/internal/session"
)

// Chat is a request-scoped projection of a chat as the client reports
// it. Never cached; a zero Timestamp means the chat has no recorded
// activity and sorts last.
type Chat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsGroup     bool   `json:"isGroup"`
	UnreadCount int    `json:"unreadCount"`
	Timestamp   int64  `json:"timestamp"`
	LastMessage string `json:"lastMessage,omitempty"`
	Archived    bool   `json:"archived"`
	Pinned      bool   `json:"pinned"`
}

// Message is a request-scoped projection of a single message. ChatID is
// the conversation the message belongs to: the recipient for outbound
// messages, the sender for inbound ones.
type Message struct {
	ID         string `json:"id"`
	ChatID     string `json:"chatId"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	From       string `json:"from"`
	To         string `json:"to"`
	Author     string `json:"author,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	FromMe     bool   `json:"fromMe"`
	Timestamp  int64  `json:"timestamp"`
	HasMedia   bool   `json:"hasMedia"`
	Ack        int    `json:"ack"`
}

// EventType classifies client lifecycle events.
type EventType int

const (
	EventQR            EventType = iota // pairing QR (re-)issued
	EventAuthenticated                  // credentials accepted
	EventReady                          // client fully synced, queries allowed
	EventAuthFailure                    // credentials rejected
	EventDisconnected                   // session lost
	EventMessage                        // inbound or outbound message created
)

// Event carries one lifecycle notification. QRCode is set for EventQR,
// Reason for EventAuthFailure/EventDisconnected, Message for
// EventMessage.
type Event struct {
	Type    EventType
	QRCode  string
	Reason  string
	Message *Message
}

// Client is the external messaging session. Start initiates the
// authentication flow; events arrive on Events until Stop, after which
// no further events are delivered (the channel may stay open). Query
// calls may take arbitrary wall-clock time and fail; callers gate them
// on lifecycle state themselves.
type Client interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Events returns the lifecycle event stream. The same channel is
	// returned on every call.
	Events() <-chan Event

	// Info reports the authenticated account, best-effort. Only
	// meaningful once the client is ready.
	Info(ctx context.Context) (*session.Info, error)

	Chats(ctx context.Context) ([]Chat, error)
	Chat(ctx context.Context, chatID string) (*Chat, error)
	Messages(ctx context.Context, chatID string, limit int) ([]Message, error)
	Send(ctx context.Context, chatID, text string) (*Message, error)
}
