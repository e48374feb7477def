package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"flyer/internal/notify"
)

const keepAliveInterval = 25 * time.Second

// writeEvent writes ev in server-sent events framing.
func writeEvent(w io.Writer, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: change\ndata: %s\n\n", ev.Revision, data)
	return err
}

// handleEvents streams content changes until the client disconnects or the
// hub stops.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "live updates disabled", http.StatusServiceUnavailable)
		return
	}
	sub := s.hub.Subscribe("sse:" + r.RemoteAddr)
	if sub == nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	_, _ = fmt.Fprintf(w, "retry: 2000\n: revision %d\n\n", s.store.Revision())
	if canFlush {
		flusher.Flush()
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
