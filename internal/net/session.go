package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"ConceptCanvas/internal/state"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotReady = errors.New("session is not suspended")
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateJoined
	StateRelaying
	StateSuspended
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateRelaying:
		return "relaying"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("SessionState(%d)", int32(s))
}

type SessionOptions struct {
	SendBuffer       int
	HandshakeTimeout time.Duration
	Header           http.Header
}

// link is one dialled connection. A session gets a new link per Connect.
type link struct {
	conn     *websocket.Conn
	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

func (l *link) stop() {
	l.once.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}

// Session connects one canvas to a room on the relay. Local canvas changes are
// sent to the room; events from other users are applied to the canvas with
// remote provenance so they are never sent back.
//
// Sending is fire-and-forget: a full buffer or a suspended session drops the
// event. There is no automatic reconnect.
type Session struct {
	serverURL string
	userID    string
	roomID    string
	canvas    *state.Canvas
	opts      SessionOptions

	mu    sync.Mutex
	state SessionState
	link  *link

	logger *zap.Logger
}

// NewSession binds canvas to roomID on the relay at serverURL. Nothing is
// dialled until Connect.
func NewSession(serverURL, userID, roomID string, canvas *state.Canvas, logger *zap.Logger, opts SessionOptions) *Session {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if roomID == "" {
		roomID = FallbackRoom
	}
	s := &Session{
		serverURL: serverURL,
		userID:    userID,
		roomID:    roomID,
		canvas:    canvas,
		opts:      opts,
		state:     StateConnecting,
		logger: logger.Named("session").With(
			zap.String("userId", userID),
			zap.String("roomId", roomID),
		),
	}
	canvas.Subscribe(s.onChange)
	return s
}

// UserID returns the id stamped on outgoing events.
func (s *Session) UserID() string { return s.userID }
// RoomID returns the room the session joins.
func (s *Session) RoomID() string { return s.roomID }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect dials the relay, joins the room and starts relaying.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.state = StateConnecting
	s.mu.Unlock()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.serverURL, s.opts.Header)
	if err != nil {
		s.setState(StateSuspended)
		return fmt.Errorf("dial %s: %w", s.serverURL, err)
	}

	join, err := NewEvent(EventJoin, JoinPayload{RoomID: s.roomID}, s.userID, s.roomID)
	if err != nil {
		conn.Close()
		s.setState(StateSuspended)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		s.setState(StateSuspended)
		return fmt.Errorf("send join: %w", err)
	}

	l := &link{
		conn:     conn,
		outbound: make(chan []byte, s.opts.SendBuffer),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		l.stop()
		return ErrSessionClosed
	}
	s.state = StateJoined
	s.link = l
	s.mu.Unlock()
	s.logger.Info("Joined room", zap.String("server", s.serverURL))

	go s.writePump(l)
	go s.readPump(l)
	s.setState(StateRelaying)
	return nil
}

// Reconnect dials again after the connection was lost. The canvas keeps its
// contents; nothing is replayed.
func (s *Session) Reconnect(ctx context.Context) error {
	switch s.State() {
	case StateClosed:
		return ErrSessionClosed
	case StateSuspended:
		return s.Connect(ctx)
	}
	return ErrSessionNotReady
}

// Close stops relaying for good.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	l := s.link
	s.link = nil
	s.mu.Unlock()

	if l != nil {
		l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		l.stop()
	}
	s.logger.Info("Session closed")
	return nil
}

func (s *Session) suspend(l *link, err error) {
	s.mu.Lock()
	current := s.link == l && s.state != StateClosed
	if current {
		s.state = StateSuspended
		s.link = nil
	}
	s.mu.Unlock()
	l.stop()

	if current {
		s.logger.Warn("Connection lost, session suspended", zap.Error(err))
	}
}

// onChange runs inside a canvas turn and must not block.
func (s *Session) onChange(change state.Change) {
	if change.Origin == state.OriginRemote {
		return
	}
	ev, err := s.eventFor(change)
	if err != nil {
		s.logger.Error("Failed to encode change", zap.Error(err), zap.String("type", string(change.Type)))
		return
	}
	data, err := ev.Encode()
	if err != nil {
		s.logger.Error("Failed to encode event", zap.Error(err), zap.String("type", string(ev.Type)))
		return
	}
	s.enqueue(ev.Type, data)
}

func (s *Session) eventFor(change state.Change) (CanvasEvent, error) {
	switch change.Type {
	case state.ChangeObjectAdded, state.ChangeObjectModified, state.ChangeObjectRemoved:
		snapshot, err := change.Object.Snapshot()
		if err != nil {
			return CanvasEvent{}, err
		}
		return NewEvent(EventType(change.Type), snapshot, s.userID, s.roomID)
	case state.ChangeCanvasCleared:
		return NewEvent(EventCanvasClear, nil, s.userID, s.roomID)
	case state.ChangeLayerUpdated:
		return NewEvent(EventLayerUpdated, change.Layer, s.userID, s.roomID)
	}
	return CanvasEvent{}, fmt.Errorf("%w: %q", ErrUnknownEventType, change.Type)
}

func (s *Session) enqueue(t EventType, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRelaying || s.link == nil {
		s.logger.Debug("Not relaying, event dropped",
			zap.String("type", string(t)),
			zap.Stringer("state", s.state),
		)
		return
	}
	select {
	case s.link.outbound <- data:
	default:
		s.logger.Warn("Send buffer full, event dropped", zap.String("type", string(t)))
	}
}

func (s *Session) writePump(l *link) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case data := <-l.outbound:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.suspend(l, err)
				return
			}
		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.suspend(l, err)
				return
			}
		}
	}
}

func (s *Session) readPump(l *link) {
	l.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			s.suspend(l, err)
			return
		}
		s.handleFrame(data)
	}
}

// handleFrame applies one inbound frame. Nothing here reports back to the user:
// bad frames and stale ids are logged and dropped.
func (s *Session) handleFrame(data []byte) {
	ev, err := DecodeEvent(data)
	if err != nil {
		s.logger.Debug("Inbound event dropped", zap.Error(err))
		return
	}
	if ev.UserID == s.userID {
		return
	}
	logger := s.logger.With(zap.String("type", string(ev.Type)), zap.String("from", ev.UserID))

	switch ev.Type {
	case EventObjectAdded:
		if err := s.canvas.ApplyAdded(ev.Payload); err != nil {
			logger.Debug("Remote add dropped", zap.Error(err))
		}
	case EventObjectModified:
		if err := s.canvas.ApplyModified(ev.Payload); err != nil {
			logger.Debug("Remote modify dropped", zap.Error(err))
		}
	case EventObjectRemoved:
		id, err := ev.ObjectID()
		if err != nil {
			logger.Debug("Remote remove dropped", zap.Error(err))
			return
		}
		s.canvas.ApplyRemoved(id)
	case EventCanvasClear:
		s.canvas.ApplyClear()
	case EventLayerUpdated:
		var layer state.Layer
		if err := json.Unmarshal(ev.Payload, &layer); err == nil {
			logger.Debug("Peer updated layer", zap.String("layerId", layer.ID))
		}
	case EventJoin:
		logger.Debug("Unexpected join from relay ignored")
	}
}

// WebSocketURL turns a relay base address ("host:port", "http://host:port")
// into the URL of its /ws endpoint.
func WebSocketURL(base string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "ws://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay address %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}
