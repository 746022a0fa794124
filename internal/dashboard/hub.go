package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visionmesh/trackd/internal/core"
	"github.com/visionmesh/trackd/internal/queue"
)

const (
	pingPeriod = 5 * time.Second
	pongWait   = 10 * time.Second
	writeWait  = 5 * time.Second
	maxMsgSize = 4096
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard is served on the LAN without an origin allowlist.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns the track window and the set of connected dashboard
// clients. New clients get the full window; subsequent tracks are
// broadcast as deltas.
type Hub struct {
	mu      sync.Mutex
	window  *Window
	clients map[*client]struct{}

	in  *queue.Queue[*core.Snapshot]
	log *log.Logger
}

func NewHub(window *Window, in *queue.Queue[*core.Snapshot]) *Hub {
	return &Hub{
		window:  window,
		clients: make(map[*client]struct{}),
		in:      in,
		log:     log.New(os.Stdout, "[Dashboard] ", log.LstdFlags),
	}
}

func (h *Hub) Run(exit <-chan int64) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			batch, stopped := h.in.DrainUpTo(10, exit)
			if len(batch) > 0 {
				h.append(batch)
			}
			if stopped {
				h.log.Print("exiting")
				h.closeAll()
				return
			}
		}
	}()
	return done
}

func (h *Hub) append(batch []*core.Snapshot) {
	h.mu.Lock()
	delta := h.window.Append(batch)
	msg := h.window.Delta(delta)
	h.mu.Unlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Printf("marshal update: %v", err)
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// A client that cannot keep up gets dropped.
			delete(h.clients, c)
			go c.close()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the connection. The
// current window is queued as the first frame.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Printf("upgrade: %v", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	snap := h.window.Snapshot()
	h.mu.Unlock()

	if payload, err := json.Marshal(snap); err == nil {
		c.send <- payload
	}

	h.log.Printf("client %s connected", conn.RemoteAddr())
	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// client wraps one websocket connection. writePump is the only
// goroutine writing to the connection, readPump the only one reading.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump drains and discards client frames; the dashboard feed is
// one-way. It exists to service pongs and detect disconnects.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
