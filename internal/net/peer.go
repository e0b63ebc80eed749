package net

import (
	"bytes"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	DefaultSendBuffer = 256
)

// Peer is one WebSocket connection held by the relay.
type Peer struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	router *Router

	// closed is only touched by the router goroutine.
	closed bool

	metrics *Metrics
	logger  *zap.Logger
}

// NewPeer wraps an upgraded connection. It joins no room until the client
// sends join.
func NewPeer(conn *websocket.Conn, router *Router, sendBuffer int, metrics *Metrics, logger *zap.Logger) *Peer {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	id := ulid.Make().String()
	return &Peer{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		router:  router,
		metrics: metrics,
		logger: logger.With(
			zap.String("peerId", id),
			zap.String("remoteAddr", conn.RemoteAddr().String()),
		),
	}
}

// ID returns the connection id used in logs.
func (p *Peer) ID() string {
	return p.id
}

// Start registers the peer and runs its pumps until the connection ends.
func (p *Peer) Start() error {
	if err := p.router.Register(p); err != nil {
		p.conn.Close()
		return err
	}
	go p.writePump()
	go p.readPump()
	return nil
}

func (p *Peer) enqueue(msg []byte) bool {
	if p.closed {
		return false
	}
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}

func (p *Peer) closeSend() {
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

func (p *Peer) readPump() {
	defer func() {
		if err := p.router.Disconnect(p); err != nil {
			p.logger.Debug("Disconnect after router stop", zap.Error(err))
		}
		p.conn.Close()
		p.logger.Debug("Read pump stopped")
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			p.metrics.drop(DropMalformed)
			p.logger.Debug("Non-text frame dropped")
			continue
		}
		if err := p.handleMessage(bytes.TrimSpace(message)); errors.Is(err, ErrRouterStopped) {
			return
		}
	}
}

func (p *Peer) handleMessage(message []byte) error {
	event, err := DecodeEvent(message)
	switch {
	case errors.Is(err, ErrUnknownEventType):
		p.metrics.drop(DropUnknown)
		p.logger.Debug("Unknown event type dropped", zap.String("type", string(event.Type)))
		return nil
	case err != nil:
		p.metrics.drop(DropMalformed)
		p.logger.Debug("Malformed message dropped", zap.Error(err))
		return nil
	}

	if event.Type == EventJoin {
		room := event.JoinRoom()
		if room == "" {
			p.metrics.drop(DropMalformed)
			p.logger.Debug("Join without room dropped")
			return nil
		}
		return p.router.Join(p, room)
	}
	return p.router.Relay(p, event, message)
}

func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
		p.logger.Debug("Write pump stopped")
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The router closed the channel
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				p.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
