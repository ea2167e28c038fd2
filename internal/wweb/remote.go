package wweb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wadash/backend/internal/session"
)

// Remote drives an external whatsapp-web.js sidecar over a websocket.
// The sidecar owns the browser session; Remote translates its JSON
// frames into typed events and correlates query calls by id.
type Remote struct {
	url         string
	clientID    string
	headless    bool
	browserPath string

	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one concurrent writer

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan callResult
	started bool

	events    chan Event
	closeOnce sync.Once
	done      chan struct{}
}

// RemoteOptions carry the session options forwarded to the sidecar on
// connect. All are optional.
type RemoteOptions struct {
	ClientID    string
	Headless    bool
	BrowserPath string
}

func NewRemote(url string, opts RemoteOptions) *Remote {
	return &Remote{
		url:         url,
		clientID:    opts.ClientID,
		headless:    opts.Headless,
		browserPath: opts.BrowserPath,
		pending:     make(map[int64]chan callResult),
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
	}
}

// frame is the wire shape in both directions.
type frame struct {
	Type   string          `json:"type"` // "init", "call", "response", "event"
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Event  string          `json:"event,omitempty"`
	QR     string          `json:"qr,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`

	Message *Message `json:"message,omitempty"`

	ClientID    string `json:"clientId,omitempty"`
	Headless    *bool  `json:"headless,omitempty"`
	BrowserPath string `json:"browserPath,omitempty"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

func (r *Remote) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("remote client already started")
	}
	r.started = true
	r.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("dial bridge %s: %w", r.url, err)
	}
	r.conn = conn

	headless := r.headless
	init := frame{
		Type:        "init",
		ClientID:    r.clientID,
		Headless:    &headless,
		BrowserPath: r.browserPath,
	}
	if err := r.writeFrame(init); err != nil {
		conn.Close()
		return fmt.Errorf("bridge init: %w", err)
	}

	go r.readLoop()
	return nil
}

func (r *Remote) Stop(ctx context.Context) error {
	var err error
	if r.conn != nil {
		r.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		r.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		r.writeMu.Unlock()
		err = r.conn.Close()
	}
	r.shutdown(errors.New("client stopped"))
	return err
}

func (r *Remote) Events() <-chan Event {
	return r.events
}

func (r *Remote) readLoop() {
	for {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				log.Printf("bridge read error: %v", err)
				r.emit(Event{Type: EventDisconnected, Reason: "bridge connection lost"})
			}
			r.shutdown(fmt.Errorf("bridge connection lost: %w", err))
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("bridge: malformed frame: %v", err)
			continue
		}

		switch f.Type {
		case "event":
			r.dispatchEvent(f)
		case "response":
			r.resolve(f)
		default:
			log.Printf("bridge: unknown frame type %q", f.Type)
		}
	}
}

func (r *Remote) dispatchEvent(f frame) {
	switch f.Event {
	case "qr":
		r.emit(Event{Type: EventQR, QRCode: f.QR})
	case "authenticated":
		r.emit(Event{Type: EventAuthenticated})
	case "ready":
		r.emit(Event{Type: EventReady})
	case "auth_failure":
		r.emit(Event{Type: EventAuthFailure, Reason: f.Reason})
	case "disconnected":
		r.emit(Event{Type: EventDisconnected, Reason: f.Reason})
	case "message":
		if f.Message != nil {
			r.emit(Event{Type: EventMessage, Message: f.Message})
		}
	default:
		log.Printf("bridge: unknown event %q", f.Event)
	}
}

func (r *Remote) emit(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Remote) resolve(f frame) {
	r.mu.Lock()
	ch, ok := r.pending[f.ID]
	delete(r.pending, f.ID)
	r.mu.Unlock()
	if !ok {
		return
	}
	if f.Error != "" {
		ch <- callResult{err: errors.New(f.Error)}
		return
	}
	ch <- callResult{result: f.Result}
}

// shutdown fails all pending calls and quiesces event emission. Safe to
// call from both Stop and the read loop. The event channel is left open;
// closing it would race with an emit in flight on the other goroutine.
func (r *Remote) shutdown(cause error) {
	r.closeOnce.Do(func() {
		close(r.done)
		r.mu.Lock()
		for id, ch := range r.pending {
			ch <- callResult{err: cause}
			delete(r.pending, id)
		}
		r.mu.Unlock()
	})
}

func (r *Remote) writeFrame(f frame) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteJSON(f)
}

// call sends a method frame and blocks until the matching response,
// context cancellation, or connection shutdown.
func (r *Remote) call(ctx context.Context, method string, params any, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	ch := make(chan callResult, 1)
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.pending[id] = ch
	r.mu.Unlock()

	f := frame{Type: "call", ID: id, Method: method, Params: raw}
	if err := r.writeFrame(f); err != nil {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		return ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("%s: %w", method, res.err)
		}
		if out == nil || len(res.result) == 0 {
			return nil
		}
		return json.Unmarshal(res.result, out)
	}
}

func (r *Remote) Info(ctx context.Context) (*session.Info, error) {
	var info session.Info
	if err := r.call(ctx, "getInfo", struct{}{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *Remote) Chats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := r.call(ctx, "listChats", struct{}{}, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *Remote) Chat(ctx context.Context, chatID string) (*Chat, error) {
	params := struct {
		ChatID string `json:"chatId"`
	}{chatID}
	var chat Chat
	if err := r.call(ctx, "getChat", params, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *Remote) Messages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	params := struct {
		ChatID string `json:"chatId"`
		Limit  int    `json:"limit"`
	}{chatID, limit}
	var msgs []Message
	if err := r.call(ctx, "fetchMessages", params, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Remote) Send(ctx context.Context, chatID, text string) (*Message, error) {
	params := struct {
		ChatID string `json:"chatId"`
		Text   string `json:"text"`
	}{chatID, text}
	var msg Message
	if err := r.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

var _ Client = (*Remote)(nil)
