package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fairyhunter13/price-hunter/internal/obs"
)

// getEventsHandler streams task updates as server-sent events. The client
// first receives a snapshot of the task's current state, then live updates
// in publish order. The stream ends after the terminal update, when the
// client goes away, or when the task was already terminal at connect time.
func (a *App) getEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/events/")
	if id == "" || strings.Contains(id, "/") {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "streaming_unsupported", "")
		return
	}

	// Subscribe before reading the snapshot so an update landing in
	// between is not lost; the snapshot then tells us whether the task
	// already finished.
	sub := a.Bus.Subscribe(id)
	defer sub.Unsubscribe()

	t, err := a.Reg.Get(id)
	if err != nil {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, "snapshot", t)
	flusher.Flush()
	if t.Status.Terminal() {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case u, open := <-sub.Updates():
			if !open {
				return
			}
			writeSSE(w, "update", u)
			flusher.Flush()
			if u.Terminal() {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		obs.Logger.Error("sse_marshal_error", "error", err)
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
