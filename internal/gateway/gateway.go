// Package gateway serves on-demand reads and sends against the external
// client, gated on the session being ready. No retries: upstream
// failures propagate to the HTTP layer, which owns status-code
// translation.
package gateway

import (
	"context"
	"sort"
	"strconv"

	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/wweb"
)

const (
	DefaultHistoryLimit = 40
	MaxHistoryLimit     = 100
)

type Gateway struct {
	client wweb.Client
	store  *session.Store
}

func New(client wweb.Client, store *session.Store) *Gateway {
	return &Gateway{client: client, store: store}
}

// ParseLimit interprets a raw limit query value: absent or non-numeric
// falls back to the default, anything else is clamped to [1, max].
func ParseLimit(raw string) int {
	if raw == "" {
		return DefaultHistoryLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultHistoryLimit
	}
	return clampLimit(n)
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return n
}

func (g *Gateway) checkReady() *Error {
	if g.store.Snapshot().Status != session.Ready {
		return notReady()
	}
	return nil
}

// ListChats fetches all chats, sorts them by last activity (most recent
// first, chats without a timestamp last) and truncates to max.
func (g *Gateway) ListChats(ctx context.Context, max int) ([]wweb.Chat, error) {
	if err := g.checkReady(); err != nil {
		return nil, err
	}

	chats, err := g.client.Chats(ctx)
	if err != nil {
		return nil, upstream(err)
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].Timestamp > chats[j].Timestamp
	})
	if max > 0 && len(chats) > max {
		chats = chats[:max]
	}
	return chats, nil
}

// History resolves a chat and fetches up to limit of its most recent
// messages, returned oldest first (chronological reading order, the
// reverse of the chat-list ordering).
func (g *Gateway) History(ctx context.Context, chatID string, limit int) (*wweb.Chat, []wweb.Message, error) {
	if err := g.checkReady(); err != nil {
		return nil, nil, err
	}
	limit = clampLimit(limit)

	chat, err := g.client.Chat(ctx, chatID)
	if err != nil {
		return nil, nil, notFound(err)
	}

	msgs, err := g.client.Messages(ctx, chatID, limit)
	if err != nil {
		return nil, nil, upstream(err)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
	return chat, msgs, nil
}

// Send forwards a text message. The resulting message event from the
// client triggers its own broadcast independently; sending and fanout
// are deliberately decoupled.
func (g *Gateway) Send(ctx context.Context, chatID, text string) (*wweb.Message, error) {
	if err := g.checkReady(); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, invalidInput("chatId is required.")
	}
	if text == "" {
		return nil, invalidInput("message is required.")
	}

	msg, err := g.client.Send(ctx, chatID, text)
	if err != nil {
		return nil, upstream(err)
	}
	return msg, nil
}
