// Package adapter binds the external client's lifecycle events to the
// session store and the broadcaster. It is the single writer of session
// state: every mutation happens on the Run goroutine and is followed by
// exactly one state broadcast.
package adapter

import (
	"context"
	"log"
	"time"

	"github.com/wadash/backend/internal/session"
	"github.com/wadash/backend/internal/stream"
	"github.com/wadash/backend/internal/wweb"
)

const (
	defaultAuthFailureReason = "Authentication failed."
	defaultDisconnectReason  = "Client disconnected."

	infoFetchTimeout = 10 * time.Second
)

type Adapter struct {
	client      wweb.Client
	store       *session.Store
	broadcaster *stream.Broadcaster
}

func New(client wweb.Client, store *session.Store, broadcaster *stream.Broadcaster) *Adapter {
	return &Adapter{
		client:      client,
		store:       store,
		broadcaster: broadcaster,
	}
}

// Run consumes lifecycle events until the context is cancelled or the
// client closes its event channel. Lifecycle events are delivered at
// most once each by the client; there is no retry or timeout here — if
// the client never reaches ready, state stays at its last phase.
func (a *Adapter) Run(ctx context.Context) {
	events := a.client.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *Adapter) handle(ctx context.Context, ev wweb.Event) {
	switch ev.Type {
	case wweb.EventQR:
		a.apply(func(s *session.State) {
			s.Status = session.QR
			s.QRCode = ev.QRCode
			s.AuthError = ""
			s.DisconnectError = ""
		})
		log.Printf("session: QR issued")

	case wweb.EventAuthenticated:
		a.apply(func(s *session.State) {
			s.Status = session.Authenticated
			s.QRCode = ""
			s.AuthError = ""
		})
		log.Printf("session: authenticated")

	case wweb.EventReady:
		info := a.fetchInfo(ctx)
		a.apply(func(s *session.State) {
			s.Status = session.Ready
			s.QRCode = ""
			s.Info = info
			s.AuthError = ""
			s.DisconnectError = ""
		})
		log.Printf("session: ready")

	case wweb.EventAuthFailure:
		reason := ev.Reason
		if reason == "" {
			reason = defaultAuthFailureReason
		}
		a.apply(func(s *session.State) {
			s.Status = session.AuthFailure
			s.AuthError = reason
			s.Info = nil
		})
		log.Printf("session: auth failure: %s", reason)

	case wweb.EventDisconnected:
		reason := ev.Reason
		if reason == "" {
			reason = defaultDisconnectReason
		}
		a.apply(func(s *session.State) {
			s.Status = session.Disconnected
			s.DisconnectError = reason
			s.Info = nil
		})
		log.Printf("session: disconnected: %s", reason)

	case wweb.EventMessage:
		// Messages never mutate lifecycle state; they only fan out.
		if ev.Message != nil {
			a.broadcaster.PublishMessage(ev.Message)
		}
	}
}

// apply runs one store mutation and broadcasts the resulting snapshot.
func (a *Adapter) apply(edit func(*session.State)) {
	snap := a.store.Mutate(edit)
	a.broadcaster.PublishState(snap)
}

// fetchInfo asks the client for account details, best-effort. Absence is
// not an error: the dashboard just shows no account line.
func (a *Adapter) fetchInfo(ctx context.Context) *session.Info {
	ctx, cancel := context.WithTimeout(ctx, infoFetchTimeout)
	defer cancel()
	info, err := a.client.Info(ctx)
	if err != nil {
		log.Printf("session: info unavailable: %v", err)
		return nil
	}
	return info
}
