package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ankurauti1234/Events-Dashboard/internal/client"
	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// liveMessage is pushed to the browser. "update" carries a re-rendered
// fragment, "error" a failed refresh, "expired" asks for a new login.
type liveMessage struct {
	Type        string `json:"type"`
	HTML        string `json:"html,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
	AutoRefresh bool   `json:"autoRefresh"`
	Interval    int    `json:"interval,omitempty"`
	Error       string `json:"error,omitempty"`
}

// controlMessage comes from the browser: refresh, pause, resume or interval.
type controlMessage struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}

// Hub tracks live connections so broadcasts and shutdown reach all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*liveConn]bool
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{clients: make(map[*liveConn]bool), log: log}
}

func (h *Hub) register(c *liveConn) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("topic", c.topic).Int("total", n).Msg("client connected")
}

func (h *Hub) unregister(c *liveConn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug().Str("topic", c.topic).Int("total", n).Msg("client disconnected")
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every client watching topic.
func (h *Hub) Broadcast(topic string, msg liveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal message")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.topic == topic {
			c.push(data)
		}
	}
}

// CloseAll drops every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*liveConn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.ws.Close()
	}
}

type liveConn struct {
	hub       *Hub
	ws        *websocket.Conn
	send      chan []byte
	topic     string
	refresher *dashboard.Refresher
	cancel    context.CancelFunc
}

// push never blocks: when the buffer is full the oldest message goes.
func (c *liveConn) push(data []byte) {
	select {
	case c.send <- data:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *liveConn) sendJSON(msg liveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.hub.clients[c] {
		c.push(data)
	}
}

func (c *liveConn) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(4096)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Msg("websocket closed")
			}
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil || c.refresher == nil {
			continue
		}
		switch msg.Type {
		case "refresh":
			c.refresher.Trigger()
		case "pause":
			c.refresher.SetEnabled(false)
		case "resume":
			c.refresher.SetEnabled(true)
		case "interval":
			c.refresher.SetInterval(time.Duration(msg.Seconds) * time.Second)
		}
	}
}

func (c *liveConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveLive upgrades the request and, when render is set, re-renders the
// fragment on every refresher tick.
func (s *Server) serveLive(c *gin.Context, topic string, auto bool, render func(ctx context.Context) (string, error)) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &liveConn{hub: s.hub, ws: ws, send: make(chan []byte, 8), topic: topic, cancel: cancel}
	s.hub.register(conn)

	if render != nil {
		interval := s.prefs(c).Refresh
		conn.refresher = dashboard.NewRefresher(interval, func(ctx context.Context) error {
			html, err := render(ctx)
			if err != nil {
				return err
			}
			conn.sendJSON(liveMessage{
				Type:        "update",
				HTML:        html,
				LastUpdated: s.now().Format(time.RFC3339),
				AutoRefresh: conn.refresher.Enabled(),
				Interval:    int(conn.refresher.Interval().Seconds()),
			})
			return nil
		}, s.log)
		conn.refresher.SetEnabled(auto)
		conn.refresher.OnError = func(err error) {
			if client.IsAuthError(err) {
				conn.sendJSON(liveMessage{Type: "expired"})
				return
			}
			conn.sendJSON(liveMessage{Type: "error", Error: "Error fetching data", AutoRefresh: conn.refresher.Enabled()})
		}
		go conn.refresher.Run(ctx)
	}

	go conn.writePump()
	go conn.readPump()
}

func (s *Server) liveEvents(c *gin.Context) {
	var form eventsForm
	if err := c.ShouldBindQuery(&form); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	sess, base := currentSession(c), s.newPage(c, "Events", "events")
	vals := c.Request.URL.Query()

	s.serveLive(c, "events", form.autoRefresh(), func(ctx context.Context) (string, error) {
		view, err := s.loadEvents(ctx, sess, form, vals, base.Zone)
		if err != nil {
			return "", err
		}
		p := base
		p.Data = view
		return s.fragment("events_live", p)
	})
}

func (s *Server) liveDevice(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	var form deviceForm
	if err := c.ShouldBindQuery(&form); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	sess, base := currentSession(c), s.newPage(c, "Device "+id, "device")
	vals := c.Request.URL.Query()
	auto := form.Auto != "0" && form.Auto != "false"

	s.serveLive(c, "device:"+id, auto, func(ctx context.Context) (string, error) {
		view, err := s.loadDevice(ctx, sess, id, form, vals)
		if err != nil {
			return "", err
		}
		p := base
		p.Data = view
		return s.fragment("device_live", p)
	})
}

func (s *Server) liveCharts(c *gin.Context) {
	s.serveLive(c, chartsTopic, true, nil)
}

