package httpapi

import (
	"encoding/json"
	"net/http"
)

// StreamSessionEvents sends the current session, then one event per change
// until the client disconnects.
func StreamSessionEvents(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := profileID(r)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		updates, cancel := s.Subscribe(id)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if res, err := s.ActiveSession(id); err == nil {
			writeEvent(w, "snapshot", res)
		}
		flusher.Flush()

		for {
			select {
			case u, ok := <-updates:
				if !ok {
					return
				}
				writeEvent(w, eventName(u.Ended, u.Deleted), u)
				flusher.Flush()

			case <-r.Context().Done():
				return
			}
		}
	}
}

func eventName(ended, deleted bool) string {
	switch {
	case deleted:
		return "deleted"
	case ended:
		return "ended"
	default:
		return "snapshot"
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) {
	data, _ := json.Marshal(v)
	w.Write([]byte("event: " + name + "\n"))
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
