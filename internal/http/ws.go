package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type SocketMessage struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func socketMessage(kind string, payload any) SocketMessage {
	return SocketMessage{Type: kind, Payload: payload, Timestamp: time.Now().Unix()}
}

// StreamSessionSocket mirrors StreamSessionEvents over a WebSocket. Clients
// may send {"type":"PING"} and receive a PONG.
func StreamSessionSocket(s Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := profileID(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		updates, cancel := s.Subscribe(id)
		defer cancel()

		log.Printf("WebSocket client connected for profile %s", id)

		pings := make(chan struct{}, 1)
		closed := make(chan struct{})
		go readPump(conn, pings, closed)

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		send := func(m SocketMessage) bool {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(m) == nil
		}

		if res, err := s.ActiveSession(id); err == nil {
			if !send(socketMessage("SNAPSHOT", res)) {
				return
			}
		}

		for {
			select {
			case u, ok := <-updates:
				if !ok {
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
					return
				}
				kind := "SNAPSHOT"
				switch {
				case u.Deleted:
					kind = "DELETED"
				case u.Ended:
					kind = "ENDED"
				}
				if !send(socketMessage(kind, u)) {
					return
				}

			case <-pings:
				if !send(socketMessage("PONG", nil)) {
					return
				}

			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}

			case <-closed:
				log.Printf("WebSocket client disconnected for profile %s", id)
				return

			case <-r.Context().Done():
				return
			}
		}
	}
}

// readPump owns all reads on conn. Writes stay on the handler goroutine.
func readPump(conn *websocket.Conn, pings chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg SocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if msg.Type == "PING" {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}
