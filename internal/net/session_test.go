package net

import (
	"context"
	"testing"

	"ConceptCanvas/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func connectSession(t *testing.T, relay *testRelay, userID, roomID string) (*Session, *state.Canvas) {
	t.Helper()
	canvas := state.NewCanvas(zap.NewNop(), state.Options{})
	s := NewSession(relay.wsURL(), userID, roomID, canvas, zap.NewNop(), SessionOptions{})
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Close() })
	assert.Equal(t, StateRelaying, s.State())
	return s, canvas
}

func hasObject(c *state.Canvas, id string) func() bool {
	return func() bool {
		_, ok := c.Object(id)
		return ok
	}
}

func TestSessionEndToEnd(t *testing.T) {
	relay := startRelay(t)
	_, canvasA := connectSession(t, relay, "u1", "r1")
	_, canvasB := connectSession(t, relay, "u2", "r1")
	_, canvasC := connectSession(t, relay, "u3", "r2")
	relay.waitMembers(t, "r1", 2)
	relay.waitMembers(t, "r2", 1)

	props := state.NewObject(state.KindRect)
	props.Width, props.Height, props.Fill = 40, 20, "#ff8800"
	obj := canvasA.Create(state.KindRect, props)
	require.NotNil(t, obj)

	require.Eventually(t, hasObject(canvasB, obj.ID), waitFor, tick)
	got, _ := canvasB.Object(obj.ID)
	assert.Equal(t, "#ff8800", got.Fill)
	assert.False(t, canvasB.CanUndo(), "remote objects are not undoable")

	require.Never(t, func() bool { return canvasC.Len() > 0 }, quiet, tick)

	// modify and remove follow the same path
	edit := obj.Clone()
	edit.Fill = "#0000ff"
	require.NoError(t, canvasA.Modify(obj.ID, edit))
	require.Eventually(t, func() bool {
		o, ok := canvasB.Object(obj.ID)
		return ok && o.Fill == "#0000ff"
	}, waitFor, tick)

	require.True(t, canvasA.Remove(obj.ID))
	require.Eventually(t, func() bool { return canvasB.Len() == 0 }, waitFor, tick)
}

func TestSessionOpacityEditReachesPeer(t *testing.T) {
	relay := startRelay(t)
	_, canvasA := connectSession(t, relay, "u1", "r1")
	_, canvasB := connectSession(t, relay, "u2", "r1")
	relay.waitMembers(t, "r1", 2)

	obj := canvasA.Create(state.KindRect, nil)
	require.Eventually(t, hasObject(canvasB, obj.ID), waitFor, tick)

	// B has composited the object once, so it holds a local base.
	require.NoError(t, canvasB.SetLayerOpacity(state.BaseLayerID, 0.5))
	require.NoError(t, canvasB.SetLayerOpacity(state.BaseLayerID, 1))

	edit, _ := canvasA.Object(obj.ID)
	edit.Opacity = 0.3
	require.NoError(t, canvasA.Modify(obj.ID, edit))

	require.Eventually(t, func() bool {
		o, ok := canvasB.Object(obj.ID)
		return ok && o.Opacity > 0.29 && o.Opacity < 0.31
	}, waitFor, tick)
	got, _ := canvasA.Object(obj.ID)
	assert.InDelta(t, 0.3, got.Opacity, 1e-9)
}

func TestSessionLoopSuppression(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	_, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	remote := state.NewObject(state.KindCircle)
	remote.ID = "obj1"
	remote.Radius = 8
	snapshot, err := remote.Snapshot()
	require.NoError(t, err)
	sendEvent(t, peer, EventObjectAdded, snapshot, "B", "r1")

	require.Eventually(t, hasObject(canvasA, "obj1"), waitFor, tick)

	// The next frame from A must be its own drawing, not an echo of obj1.
	local := canvasA.Create(state.KindRect, nil)
	ev, _ := readEvent(t, peer)
	assert.Equal(t, EventObjectAdded, ev.Type)
	assert.Equal(t, "A", ev.UserID)
	assert.Equal(t, "r1", ev.RoomID)
	id, err := ev.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, local.ID, id)
}

func TestSessionRemoteModifyAndRemoveAreNotEchoed(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	_, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	obj := canvasA.Create(state.KindRect, nil)
	readEvent(t, peer) // A's own add

	edit := obj.Clone()
	edit.Stroke = "#123456"
	snapshot, err := edit.Snapshot()
	require.NoError(t, err)
	sendEvent(t, peer, EventObjectModified, snapshot, "B", "r1")
	require.Eventually(t, func() bool {
		o, ok := canvasA.Object(obj.ID)
		return ok && o.Stroke == "#123456"
	}, waitFor, tick)

	sendEvent(t, peer, EventObjectRemoved, ObjectRef{ID: obj.ID}, "B", "r1")
	require.Eventually(t, func() bool { return canvasA.Len() == 0 }, waitFor, tick)

	// removal of an unknown id and modification of an unknown id are dropped
	sendEvent(t, peer, EventObjectRemoved, ObjectRef{ID: obj.ID}, "B", "r1")
	sendEvent(t, peer, EventObjectModified, snapshot, "B", "r1")

	assertSilent(t, peer)
	assert.Equal(t, 0, canvasA.Len())
}

func TestSessionDiscardsSelfEcho(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	_, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	forged := state.NewObject(state.KindRect)
	forged.ID = "mine"
	snapshot, err := forged.Snapshot()
	require.NoError(t, err)
	sendEvent(t, peer, EventObjectAdded, snapshot, "A", "r1")
	sendEvent(t, peer, EventCanvasClear, nil, "A", "r1")

	require.Never(t, func() bool { return canvasA.Len() > 0 }, quiet, tick)
}

func TestSessionRemoteClear(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	_, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	canvasA.Create(state.KindRect, nil)
	canvasA.Create(state.KindCircle, nil)
	readEvent(t, peer)
	readEvent(t, peer)

	sendEvent(t, peer, EventCanvasClear, nil, "B", "r1")
	require.Eventually(t, func() bool { return canvasA.Len() == 0 }, waitFor, tick)
	assertSilent(t, peer)
}

func TestSessionSendsClearAndLayerUpdates(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	_, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	canvasA.Clear()
	ev, _ := readEvent(t, peer)
	assert.Equal(t, EventCanvasClear, ev.Type)

	layer := canvasA.AddLayer()
	ev, _ = readEvent(t, peer)
	assert.Equal(t, EventLayerUpdated, ev.Type)
	assert.Contains(t, string(ev.Payload), layer.ID)
}

func TestSessionIgnoresDroppedFrames(t *testing.T) {
	relay := startRelay(t)
	peer := relay.dialRaw(t, "r1")
	s, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 2)

	sendEvent(t, peer, EventObjectAdded, map[string]any{"type": "rect"}, "B", "r1")
	sendEvent(t, peer, EventLayerUpdated, map[string]any{"id": "layer-9"}, "B", "r1")

	require.Never(t, func() bool { return canvasA.Len() > 0 }, quiet, tick)
	assert.Equal(t, StateRelaying, s.State())
	assert.Len(t, canvasA.Layers(), 1, "layer updates from peers are informational")
}

func TestSessionLifecycle(t *testing.T) {
	relay := startRelay(t)
	s, canvasA := connectSession(t, relay, "A", "r1")
	relay.waitMembers(t, "r1", 1)

	assert.ErrorIs(t, s.Reconnect(context.Background()), ErrSessionNotReady)

	relay.stop()
	require.Eventually(t, func() bool { return s.State() == StateSuspended }, waitFor, tick)

	// local edits keep working while suspended
	assert.NotNil(t, canvasA.Create(state.KindRect, nil))
	assert.Equal(t, 1, canvasA.Len())

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.ErrorIs(t, s.Reconnect(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, s.Connect(context.Background()), ErrSessionClosed)
}

func TestSessionDialFailureSuspends(t *testing.T) {
	canvas := state.NewCanvas(zap.NewNop(), state.Options{})
	s := NewSession("ws://127.0.0.1:1/ws", "A", "", canvas, zap.NewNop(), SessionOptions{})
	assert.Equal(t, FallbackRoom, s.RoomID())

	require.Error(t, s.Connect(context.Background()))
	assert.Equal(t, StateSuspended, s.State())
}
