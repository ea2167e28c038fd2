package web

import (
	"fmt"
	"log"
	"net/http"
	"time"
)

// handleEvents is the push endpoint: an SSE stream carrying named
// "state" and "message" events. A retry-interval hint opens the stream,
// and comment keep-alives defeat idle-timeout intermediaries; neither is
// a data event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		notFound(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry: %d\n\n", s.cfg.Stream.RetryMillis)
	flusher.Flush()

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	log.Printf("push subscriber connected: %s", r.RemoteAddr)
	defer log.Printf("push subscriber disconnected: %s", r.RemoteAddr)

	keepAlive := time.NewTicker(s.cfg.Stream.KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				// Removed by the broadcaster (too slow, or shutdown).
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
