// Package live fans committed punches out to connected admin dashboards.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub holds subscribers keyed by identity. A second Subscribe with the same id
// replaces the first.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*Subscriber
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]*Subscriber)}
}

// Subscriber receives broadcast frames until closed.
type Subscriber struct {
	id   string
	hub  *Hub
	ch   chan []byte
	once sync.Once
}

// C yields frames; it is closed when the subscriber is dropped or replaced.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Close removes the subscriber from its hub.
func (s *Subscriber) Close() { s.hub.remove(s) }

func (s *Subscriber) shut() { s.once.Do(func() { close(s.ch) }) }

// Subscribe registers id, closing any previous subscriber with the same id.
func (h *Hub) Subscribe(id string) *Subscriber {
	s := &Subscriber{id: id, hub: h, ch: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subs[id]; ok {
		old.shut()
	}
	h.subs[id] = s
	return s
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.subs[s.id]; ok && cur == s {
		delete(h.subs, s.id)
	}
	s.shut()
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast sends msg to every subscriber. Subscribers whose buffer is full are dropped.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		select {
		case s.ch <- msg:
		default:
			zap.L().Warn("dropping slow live subscriber", zap.String("subscriber", id))
			delete(h.subs, id)
			s.shut()
		}
	}
}

type frame struct {
	Type  string           `json:"type"`
	Punch attendance.Event `json:"punch"`
}

// PublishPunch implements attendance.Publisher.
func (h *Hub) PublishPunch(_ context.Context, evt attendance.Event) error {
	raw, err := json.Marshal(frame{Type: "punch", Punch: evt})
	if err != nil {
		return err
	}
	h.Broadcast(raw)
	return nil
}

// ServeWS upgrades the request and streams frames to it under id.
func (h *Hub) ServeWS(c *gin.Context, id string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := h.Subscribe(id)
	zap.L().Info("live subscriber connected", zap.String("subscriber", id))

	go writePump(conn, sub)
	go readPump(conn, sub)
}

func writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				sub.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.Close()
				return
			}
		}
	}
}

// readPump discards client frames and detects disconnects.
func readPump(conn *websocket.Conn, sub *Subscriber) {
	defer func() {
		sub.Close()
		conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("live subscriber read failed", zap.Error(err))
			}
			return
		}
	}
}
