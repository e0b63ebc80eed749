package net

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the "type" field of a wire message.
type EventType string

const (
	EventJoin           EventType = "join"
	EventObjectAdded    EventType = "object:added"
	EventObjectModified EventType = "object:modified"
	EventObjectRemoved  EventType = "object:removed"
	EventCanvasClear    EventType = "canvas:clear"
	EventLayerUpdated   EventType = "layer:updated"
)

var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownEventType = errors.New("unknown event type")
)

// Valid reports whether t is an event the relay forwards.
func (t EventType) Valid() bool {
	switch t {
	case EventJoin, EventObjectAdded, EventObjectModified, EventObjectRemoved, EventCanvasClear, EventLayerUpdated:
		return true
	}
	return false
}

// CanvasEvent is one JSON text frame exchanged between sessions and the router.
type CanvasEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	RoomID  string          `json:"roomId,omitempty"`
}

type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// ObjectRef is the part of an object payload needed to match it by id. Full
// snapshots decode into it as well.
type ObjectRef struct {
	ID string `json:"id"`
}

// NewEvent marshals payload into a CanvasEvent. A nil payload is omitted.
func NewEvent(t EventType, payload any, userID, roomID string) (CanvasEvent, error) {
	ev := CanvasEvent{Type: t, UserID: userID, RoomID: roomID}
	if payload == nil {
		return ev, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		ev.Payload = raw
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return CanvasEvent{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	ev.Payload = data
	return ev, nil
}

// Encode returns the wire form of e.
func (e CanvasEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a frame. Invalid JSON yields ErrMalformedEvent and a type
// outside the protocol yields ErrUnknownEventType.
func DecodeEvent(data []byte) (CanvasEvent, error) {
	var ev CanvasEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return CanvasEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if !ev.Type.Valid() {
		return ev, fmt.Errorf("%w: %q", ErrUnknownEventType, ev.Type)
	}
	return ev, nil
}

// JoinRoom returns the room a join event asks for. The payload wins over the
// envelope's roomId.
func (e CanvasEvent) JoinRoom() string {
	var p JoinPayload
	if len(e.Payload) > 0 && json.Unmarshal(e.Payload, &p) == nil && p.RoomID != "" {
		return p.RoomID
	}
	return e.RoomID
}

// ObjectID extracts the id from an object payload.
func (e CanvasEvent) ObjectID() (string, error) {
	var ref ObjectRef
	if err := json.Unmarshal(e.Payload, &ref); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ref.ID == "" {
		return "", fmt.Errorf("%w: payload has no id", ErrMalformedEvent)
	}
	return ref.ID, nil
}
