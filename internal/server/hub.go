package server

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nguyengg/sealer/progress"
	"github.com/sirupsen/logrus"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is the number of events queued per client; further events are dropped until the client catches up.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil {
			return false
		}

		switch u.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		default:
			return false
		}
	},
}

// hub fans out progress events to every connected websocket client.
type hub struct {
	logger logrus.FieldLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan progress.Event
}

func newHub(logger logrus.FieldLogger) *hub {
	return &hub{logger: logger, clients: make(map[*client]struct{})}
}

// publish is a progress.Sink; it never blocks.
func (h *hub) publish(ev progress.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// serveWs upgrades the connection then streams events to it until either side closes.
func (h *hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade error")
		return
	}

	c := &client{conn: conn, send: make(chan progress.Event, sendBuffer)}
	h.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)

		for ev := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.WithError(err).Debug("websocket write error")
				_ = conn.Close()
				return
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}()

	// clients never send anything; reading only detects the close.
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(c)
	<-done
	_ = conn.Close()
}

// closeAll disconnects every client.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
