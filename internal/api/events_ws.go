package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pccr10001/daqring/internal/model"
	"github.com/pccr10001/daqring/pkg/logger"
	"github.com/pccr10001/daqring/pkg/ringchan"
)

const (
	wsWriteWait  = 5 * time.Second
	wsClientSend = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventMessage is the JSON frame pushed to websocket clients.
type EventMessage struct {
	Type    string         `json:"type"` // buffer, segment
	Time    time.Time      `json:"time"`
	Buffer  *BufferEvent   `json:"buffer,omitempty"`
	Segment *model.Segment `json:"segment,omitempty"`
}

type BufferEvent struct {
	Channel  string `json:"channel"`
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Marked   bool   `json:"marked"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan EventMessage
	once sync.Once
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.send) })
}

// EventHub fans buffer events and finished segments out to websocket
// clients. A client that cannot keep up misses messages rather than
// slowing the publisher.
type EventHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[*wsClient]struct{})}
}

// Publish is a ringchan.Listener.
func (h *EventHub) Publish(ev ringchan.Event) {
	h.broadcast(EventMessage{
		Type: "buffer",
		Time: time.Now(),
		Buffer: &BufferEvent{
			Channel:  ev.Channel,
			Kind:     ev.Kind.String(),
			Count:    ev.Count,
			Size:     ev.Size,
			Capacity: ev.Capacity,
			Marked:   ev.Marked,
		},
	})
}

func (h *EventHub) PublishSegment(seg *model.Segment) {
	h.broadcast(EventMessage{Type: "segment", Time: time.Now(), Segment: seg})
}

func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) broadcast(msg EventMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.clients {
		select {
		case cl.send <- msg:
		default:
		}
	}
}

// Close disconnects every client and waits for their goroutines.
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	for cl := range h.clients {
		cl.close()
		delete(h.clients, cl)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *EventHub) register(cl *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *EventHub) unregister(cl *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		cl.close()
	}
	h.mu.Unlock()
}

// Serve upgrades the request and streams events until the client leaves.
func (h *EventHub) Serve(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Errorf("upgrade websocket failed: %v", err)
		return
	}

	cl := &wsClient{conn: conn, send: make(chan EventMessage, wsClientSend)}
	if !h.register(cl) {
		_ = conn.Close()
		return
	}
	defer h.wg.Done()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reads only detect the peer going away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.unregister(cl)
				return
			}
		}
	}()

	for msg := range cl.send {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			logger.Log.Warnf("write event failed: %v", err)
			h.unregister(cl)
			break
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = conn.Close()
	<-done
}
