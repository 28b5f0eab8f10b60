// Package gateway bridges relay topics to browser WebSocket clients.
// Browsers cannot speak to the broker directly, so the gateway holds a
// per-slide pool of connections, forwards every slide and submission
// event verbatim, and publishes inbound client frames to the slide
// topic. The relay subscription for a slide is opened by the first
// connection and closed by the last.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sketchparty/sketchparty/internal/relay"
)

// Config holds WebSocket connection settings.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default WebSocket configuration. Image
// payloads are base64 data URLs, so frames run large.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 << 20, // base64 PNG submissions
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Gateway manages WebSocket connections per slide.
type Gateway struct {
	relay    relay.Relay
	upgrader websocket.Upgrader
	config   Config

	mu     sync.Mutex
	slides map[string]*slidePool
}

type slidePool struct {
	conns    map[*connection]bool
	slideSub relay.Subscription
	subSub   relay.Subscription
}

type connection struct {
	id      string
	slideID string
	ws      *websocket.Conn
	send    chan []byte
	gateway *Gateway
}

func New(r relay.Relay, config Config) *Gateway {
	return &Gateway{
		relay: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		slides: make(map[string]*slidePool),
	}
}

// HandleWS upgrades GET /ws/{slideId} connections.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request, slideID string) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := &connection{
		id:      uuid.New().String(),
		slideID: slideID,
		ws:      ws,
		send:    make(chan []byte, 64),
		gateway: g,
	}

	if err := g.register(conn); err != nil {
		log.Error().Err(err).Str("slide_id", slideID).Msg("failed to attach slide subscription")
		ws.Close()
		return
	}

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.id).
		Str("slide_id", slideID).
		Msg("WebSocket connection established")
}

// register adds the connection to its slide pool, opening the relay
// subscriptions when this is the pool's first member.
func (g *Gateway) register(conn *connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool, ok := g.slides[conn.slideID]
	if !ok {
		pool = &slidePool{conns: make(map[*connection]bool)}

		slideSub, err := g.relay.Subscribe(relay.SlideTopic(conn.slideID), func(payload []byte) {
			g.broadcast(conn.slideID, payload)
		})
		if err != nil {
			return err
		}
		subSub, err := g.relay.Subscribe(relay.SubmissionTopic(conn.slideID), func(payload []byte) {
			g.broadcast(conn.slideID, payload)
		})
		if err != nil {
			slideSub.Unsubscribe()
			return err
		}

		pool.slideSub = slideSub
		pool.subSub = subSub
		g.slides[conn.slideID] = pool
	}

	pool.conns[conn] = true
	return nil
}

// unregister removes a connection; the last member of a pool tears down
// the relay subscriptions without touching other slides' pools.
func (g *Gateway) unregister(conn *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool, ok := g.slides[conn.slideID]
	if !ok {
		return
	}
	if _, ok := pool.conns[conn]; !ok {
		return
	}
	delete(pool.conns, conn)
	close(conn.send)

	if len(pool.conns) == 0 {
		pool.slideSub.Unsubscribe()
		pool.subSub.Unsubscribe()
		delete(g.slides, conn.slideID)
	}

	log.Info().
		Str("connection_id", conn.id).
		Str("slide_id", conn.slideID).
		Msg("connection unregistered")
}

// broadcast forwards a relay payload to every connection on a slide.
func (g *Gateway) broadcast(slideID string, payload []byte) {
	g.mu.Lock()
	pool, ok := g.slides[slideID]
	if !ok {
		g.mu.Unlock()
		return
	}
	conns := make([]*connection, 0, len(pool.conns))
	for c := range pool.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		select {
		case c.send <- payload:
		default:
			// Slow consumer: drop the connection, not the broadcast.
			log.Warn().Str("connection_id", c.id).Msg("send buffer full, closing connection")
			g.unregister(c)
			c.ws.Close()
		}
	}
}

// Stats returns the number of open connections per slide.
func (g *Gateway) Stats() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.slides))
	for slideID, pool := range g.slides {
		out[slideID] = len(pool.conns)
	}
	return out
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.gateway.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.gateway.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.id).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.gateway.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) readPump() {
	defer func() {
		c.gateway.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.gateway.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.gateway.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gateway.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected WebSocket close")
			}
			return
		}

		// Inbound frames are relay events from presenter/audience
		// browsers; forward them to the slide topic verbatim.
		if err := c.gateway.relay.Publish(context.Background(), relay.SlideTopic(c.slideID), message); err != nil {
			log.Error().Err(err).Str("connection_id", c.id).Msg("failed to publish client frame")
		}
		c.ws.SetReadDeadline(time.Now().Add(c.gateway.config.ReadTimeout))
	}
}
