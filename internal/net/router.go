package net

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrRouterStopped = errors.New("router stopped")

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opJoin
	opRelay
)

// request is one unit of work for the Run loop. A single queue keeps each
// peer's requests in the order it made them.
type request struct {
	op     opKind
	peer   *Peer
	roomID string
	event  CanvasEvent
	raw    []byte
}

// Stats is a point-in-time view of the room table.
type Stats struct {
	Peers int            `json:"peers"`
	Rooms map[string]int `json:"rooms"`
}

// Router groups peers into rooms and fans every message out to the other
// members of its room. The room table is owned by the Run goroutine; all other
// methods hand requests to it over channels.
type Router struct {
	peers map[*Peer]struct{}
	rooms map[string]map[*Peer]struct{}

	requests chan request
	stats    chan chan Stats
	done     chan struct{}

	metrics *Metrics
	logger  *zap.Logger
}

// NewRouter returns a router with no rooms. Call Run to start it.
func NewRouter(metrics *Metrics, logger *zap.Logger) *Router {
	return &Router{
		peers:    make(map[*Peer]struct{}),
		rooms:    make(map[string]map[*Peer]struct{}),
		requests: make(chan request, 1024),
		stats:    make(chan chan Stats),
		done:     make(chan struct{}),
		metrics:  metrics,
		logger:   logger.Named("router"),
	}
}

// Run processes requests until ctx is cancelled, then closes every peer.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)
	r.logger.Info("Router started")

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return

		case req := <-r.requests:
			switch req.op {
			case opRegister:
				r.peers[req.peer] = struct{}{}
				r.updateGauges()
			case opUnregister:
				r.disconnect(req.peer)
			case opJoin:
				r.joinRoom(req.peer, req.roomID)
			case opRelay:
				r.fanOut(req)
			}

		case reply := <-r.stats:
			reply <- r.snapshot()
		}
	}
}

// Register adds a connected peer that has not joined a room yet.
func (r *Router) Register(p *Peer) error {
	return r.submit(request{op: opRegister, peer: p})
}

// Disconnect removes p from every room and closes its send buffer.
func (r *Router) Disconnect(p *Peer) error {
	return r.submit(request{op: opUnregister, peer: p})
}

// Join moves p into roomID, leaving any room it was in.
func (r *Router) Join(p *Peer, roomID string) error {
	return r.submit(request{op: opJoin, peer: p, roomID: roomID})
}

// Relay forwards raw unmodified to every other peer in event.RoomID.
func (r *Router) Relay(sender *Peer, event CanvasEvent, raw []byte) error {
	return r.submit(request{op: opRelay, peer: sender, event: event, raw: raw})
}

// Stats returns the peer count and the members of each room.
func (r *Router) Stats(ctx context.Context) (Stats, error) {
	reply := make(chan Stats, 1)
	select {
	case r.stats <- reply:
	case <-r.done:
		return Stats{}, ErrRouterStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (r *Router) submit(req request) error {
	select {
	case <-r.done:
		return ErrRouterStopped
	default:
	}
	select {
	case r.requests <- req:
		return nil
	case <-r.done:
		return ErrRouterStopped
	}
}

func (r *Router) joinRoom(p *Peer, roomID string) {
	if _, ok := r.peers[p]; !ok {
		r.logger.Debug("Join from unregistered peer ignored", zap.String("peerId", p.ID()))
		return
	}
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Peer]struct{})
		r.rooms[roomID] = members
	}
	members[p] = struct{}{}
	r.metrics.joined()
	r.updateGauges()

	r.logger.Info("Peer joined room",
		zap.String("peerId", p.ID()),
		zap.String("roomId", roomID),
		zap.Int("members", len(members)),
	)
}

func (r *Router) fanOut(req request) {
	members := r.rooms[req.event.RoomID]
	if len(members) == 0 {
		r.metrics.drop(DropNoRoom)
		r.logger.Debug("Relay to empty room",
			zap.String("roomId", req.event.RoomID),
			zap.String("type", string(req.event.Type)),
		)
		return
	}

	delivered, skipped := 0, 0
	for p := range members {
		if p == req.peer {
			continue
		}
		if p.enqueue(req.raw) {
			delivered++
			r.metrics.relayed(req.event.Type)
			continue
		}
		skipped++
		r.metrics.drop(DropBufferFull)
		r.logger.Warn("Peer buffer full, message skipped",
			zap.String("peerId", p.ID()),
			zap.String("roomId", req.event.RoomID),
		)
	}

	r.logger.Debug("Relay complete",
		zap.String("roomId", req.event.RoomID),
		zap.String("type", string(req.event.Type)),
		zap.Int("delivered", delivered),
		zap.Int("skipped", skipped),
	)
}

func (r *Router) disconnect(p *Peer) {
	if _, ok := r.peers[p]; !ok {
		return
	}
	delete(r.peers, p)
	for roomID, members := range r.rooms {
		if _, ok := members[p]; !ok {
			continue
		}
		delete(members, p)
		if len(members) == 0 {
			delete(r.rooms, roomID)
			r.logger.Info("Room emptied", zap.String("roomId", roomID))
		}
	}
	p.closeSend()
	r.updateGauges()

	r.logger.Info("Peer disconnected",
		zap.String("peerId", p.ID()),
		zap.Int("peers", len(r.peers)),
	)
}

func (r *Router) shutdown() {
	for p := range r.peers {
		p.closeSend()
		p.conn.Close()
	}
	r.peers = make(map[*Peer]struct{})
	r.rooms = make(map[string]map[*Peer]struct{})
	r.updateGauges()
	r.logger.Info("Router stopped")
}

func (r *Router) snapshot() Stats {
	s := Stats{Peers: len(r.peers), Rooms: make(map[string]int, len(r.rooms))}
	for roomID, members := range r.rooms {
		s.Rooms[roomID] = len(members)
	}
	return s
}

func (r *Router) updateGauges() {
	r.metrics.gauges(len(r.peers), len(r.rooms))
}
