package state

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCanvas(t *testing.T) (*Canvas, *[]Change) {
	t.Helper()
	c := NewCanvas(zap.NewNop(), Options{HistoryCapacity: 10})
	changes := &[]Change{}
	c.Subscribe(func(ch Change) {
		*changes = append(*changes, ch)
	})
	return c, changes
}

func snapshotOf(t *testing.T, obj *SceneObject) []byte {
	t.Helper()
	data, err := obj.Snapshot()
	require.NoError(t, err)
	return data
}

func changeTypes(changes []Change) []ChangeType {
	types := make([]ChangeType, len(changes))
	for i, ch := range changes {
		types[i] = ch.Type
	}
	return types
}

func TestCanvasLocalChangesAreLocal(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	require.NotNil(t, obj)

	props := obj.Clone()
	props.Fill = "#00ff00"
	require.NoError(t, c.Modify(obj.ID, props))
	require.True(t, c.Remove(obj.ID))

	assert.Equal(t, []ChangeType{ChangeObjectAdded, ChangeObjectModified, ChangeObjectRemoved}, changeTypes(*changes))
	for _, ch := range *changes {
		assert.Equal(t, OriginLocal, ch.Origin)
		assert.Equal(t, obj.ID, ch.Object.ID)
	}
}

func TestCanvasModifyUnknown(t *testing.T) {
	c, _ := newTestCanvas(t)
	assert.ErrorIs(t, c.Modify("missing", NewObject(KindRect)), ErrObjectNotFound)
}

func TestApplyAddedIsRemoteAndNotUndoable(t *testing.T) {
	c, changes := newTestCanvas(t)
	remote := NewObject(KindCircle)
	remote.ID = "peer-obj"
	remote.Radius = 12

	require.NoError(t, c.ApplyAdded(snapshotOf(t, remote)))

	require.Len(t, *changes, 1)
	assert.Equal(t, OriginRemote, (*changes)[0].Origin)
	assert.False(t, c.CanUndo())
	assert.Equal(t, OriginLocal, c.Origin("peer-obj"), "provenance released after apply")

	got, ok := c.Object("peer-obj")
	require.True(t, ok)
	assert.Equal(t, 12.0, got.Radius)
	assert.Equal(t, BaseLayerID, got.LayerID)
}

func TestApplyAddedDuplicateIgnored(t *testing.T) {
	c, _ := newTestCanvas(t)
	remote := NewObject(KindRect)
	remote.ID = "dup"
	require.NoError(t, c.ApplyAdded(snapshotOf(t, remote)))
	require.NoError(t, c.ApplyAdded(snapshotOf(t, remote)))
	assert.Equal(t, 1, c.Len())
}

func TestApplyAddedRejectsBadSnapshots(t *testing.T) {
	c, changes := newTestCanvas(t)
	assert.ErrorIs(t, c.ApplyAdded([]byte(`{"type":"rect"`)), ErrInvalidSnapshot)
	assert.ErrorIs(t, c.ApplyAdded([]byte(`{"type":"rect"}`)), ErrInvalidSnapshot)
	assert.Empty(t, *changes)
	assert.Equal(t, 0, c.Len())
}

func TestApplyModifiedLastWriterWins(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	renders := c.Renders()

	first := obj.Clone()
	first.Fill = "#111111"
	second := obj.Clone()
	second.Fill = "#222222"
	second.LayerID = "their-layer"

	require.NoError(t, c.ApplyModified(snapshotOf(t, first)))
	require.NoError(t, c.ApplyModified(snapshotOf(t, second)))

	got, _ := c.Object(obj.ID)
	assert.Equal(t, "#222222", got.Fill)
	assert.Equal(t, BaseLayerID, got.LayerID, "local layer membership kept")
	assert.Greater(t, c.Renders(), renders)

	last := (*changes)[len(*changes)-1]
	assert.Equal(t, ChangeObjectModified, last.Type)
	assert.Equal(t, OriginRemote, last.Origin)
}

func TestApplyModifiedUnknownDropped(t *testing.T) {
	c, changes := newTestCanvas(t)
	ghost := NewObject(KindRect)
	ghost.ID = "ghost"
	assert.ErrorIs(t, c.ApplyModified(snapshotOf(t, ghost)), ErrObjectNotFound)
	assert.Empty(t, *changes)
	assert.Equal(t, 0, c.Len())
}

func TestModifyOpacityThroughFadedLayer(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 0.5))

	props, _ := c.Object(obj.ID)
	props.Opacity = 0.2
	require.NoError(t, c.Modify(obj.ID, props))

	got, _ := c.Object(obj.ID)
	assert.InDelta(t, 0.2, got.Opacity, 1e-9)
	require.NotNil(t, got.BaseOpacity)
	assert.InDelta(t, 0.4, *got.BaseOpacity, 1e-9)

	last := (*changes)[len(*changes)-1]
	assert.Equal(t, ChangeObjectModified, last.Type)
	assert.InDelta(t, 0.2, last.Object.Opacity, 1e-9)

	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 1))
	got, _ = c.Object(obj.ID)
	assert.InDelta(t, 0.4, got.Opacity, 1e-9)
}

func TestModifyKeepsBaseWhenOpacityUntouched(t *testing.T) {
	c, _ := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 0.5))

	props, _ := c.Object(obj.ID)
	props.Fill = "#ff0000"
	require.NoError(t, c.Modify(obj.ID, props))

	got, _ := c.Object(obj.ID)
	assert.Equal(t, "#ff0000", got.Fill)
	assert.InDelta(t, 0.5, got.Opacity, 1e-9)
	require.NotNil(t, got.BaseOpacity)
	assert.InDelta(t, 1.0, *got.BaseOpacity, 1e-9)
}

func TestApplyModifiedTakesPeerOpacity(t *testing.T) {
	c, _ := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	// Captures a base of 1 and restores the layer.
	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 0.5))
	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 1))

	incoming := obj.Clone()
	incoming.Opacity = 0.3
	incoming.BaseOpacity = nil
	require.NoError(t, c.ApplyModified(snapshotOf(t, incoming)))

	got, _ := c.Object(obj.ID)
	assert.InDelta(t, 0.3, got.Opacity, 1e-9)
}

func TestApplyModifiedOpacityUnderFadedLayer(t *testing.T) {
	c, _ := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	require.NoError(t, c.SetLayerOpacity(BaseLayerID, 0.5))

	incoming := obj.Clone()
	incoming.Opacity = 0.3
	require.NoError(t, c.ApplyModified(snapshotOf(t, incoming)))

	got, _ := c.Object(obj.ID)
	assert.InDelta(t, 0.3, got.Opacity, 1e-9)
	require.NotNil(t, got.BaseOpacity)
	assert.InDelta(t, 0.6, *got.BaseOpacity, 1e-9)
}

func TestApplyRemovedIsIdempotent(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	*changes = nil

	c.ApplyRemoved(obj.ID)
	c.ApplyRemoved(obj.ID)
	c.ApplyRemoved("never")

	assert.Equal(t, 0, c.Len())
	require.Len(t, *changes, 1)
	assert.Equal(t, OriginRemote, (*changes)[0].Origin)
	assert.Empty(t, c.Layers()[0].Objects)
}

func TestClearPublishesOnce(t *testing.T) {
	c, changes := newTestCanvas(t)
	c.Create(KindRect, nil)
	c.Create(KindCircle, nil)
	*changes = nil

	c.Clear()
	assert.Equal(t, 0, c.Len())
	require.Len(t, *changes, 1)
	assert.Equal(t, ChangeCanvasCleared, (*changes)[0].Type)
	assert.Equal(t, OriginLocal, (*changes)[0].Origin)

	c.Create(KindRect, nil)
	*changes = nil
	c.ApplyClear()
	require.Len(t, *changes, 1)
	assert.Equal(t, OriginRemote, (*changes)[0].Origin)
}

func TestCanvasUndoRedoPublishes(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindPath, nil)

	require.True(t, c.Undo())
	require.True(t, c.Redo())
	assert.Equal(t, []ChangeType{ChangeObjectAdded, ChangeObjectRemoved, ChangeObjectAdded}, changeTypes(*changes))

	_, ok := c.Object(obj.ID)
	assert.True(t, ok)
	assert.False(t, c.CanRedo())
}

func TestGroupLayerNotRecorded(t *testing.T) {
	c, changes := newTestCanvas(t)
	c.Create(KindRect, nil)
	c.Create(KindRect, nil)
	*changes = nil

	group, err := c.GroupLayer(BaseLayerID)
	require.NoError(t, err)
	assert.Equal(t, KindGroup, group.Kind)

	assert.Equal(t,
		[]ChangeType{ChangeObjectRemoved, ChangeObjectRemoved, ChangeObjectAdded, ChangeLayerUpdated},
		changeTypes(*changes))

	// grouped members leave the history with the scene
	assert.False(t, c.CanUndo())
	assert.False(t, c.Undo())
	assert.False(t, c.Redo())
	objs := c.Objects()
	require.Len(t, objs, 1)
	assert.Equal(t, group.ID, objs[0].ID)
}

func TestGroupThenUndoRedoDoesNotDuplicate(t *testing.T) {
	c, _ := newTestCanvas(t)
	a := c.Create(KindRect, nil)
	b := c.Create(KindRect, nil)
	other := c.AddLayer()
	loose := c.Create(KindCircle, nil)

	group, err := c.GroupLayer(BaseLayerID)
	require.NoError(t, err)

	// only the object outside the group is still undoable
	require.True(t, c.Undo())
	assert.False(t, c.Undo())
	require.True(t, c.Redo())
	assert.False(t, c.Redo())

	ids := make([]string, 0, c.Len())
	for _, obj := range c.Objects() {
		ids = append(ids, obj.ID)
	}
	assert.ElementsMatch(t, []string{group.ID, loose.ID}, ids)
	assert.NotContains(t, ids, a.ID)
	assert.NotContains(t, ids, b.ID)

	base, _ := c.Layer(BaseLayerID)
	assert.Equal(t, []string{group.ID}, base.Objects)
	top, _ := c.Layer(other.ID)
	assert.Equal(t, []string{loose.ID}, top.Objects)
}

func TestUngroupLeavesNothingToUndo(t *testing.T) {
	c, _ := newTestCanvas(t)
	c.Create(KindRect, nil)
	c.Create(KindRect, nil)
	_, err := c.GroupLayer(BaseLayerID)
	require.NoError(t, err)

	children, err := c.UngroupLayer(BaseLayerID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.False(t, c.Undo())
	assert.Equal(t, 2, c.Len())
}

func TestLayerOpsPublishLayerUpdated(t *testing.T) {
	c, changes := newTestCanvas(t)
	l := c.AddLayer()
	require.NoError(t, c.SetLayerBlendMode(l.ID, BlendMultiply))
	assert.Error(t, c.SetLayerBlendMode(l.ID, "nope"))

	require.Len(t, *changes, 2)
	last := (*changes)[1]
	assert.Equal(t, ChangeLayerUpdated, last.Type)
	require.NotNil(t, last.Layer)
	assert.Equal(t, BlendMultiply, last.Layer.BlendMode)
}

func TestDocumentRoundTrip(t *testing.T) {
	c, _ := newTestCanvas(t)
	r := NewObject(KindRect)
	r.Width, r.Height, r.Fill = 40, 30, "#336699"
	first := c.Create(KindRect, r)
	l := c.AddLayer()
	second := c.Create(KindCircle, nil)
	require.NoError(t, c.SetLayerOpacity(l.ID, 0.5))

	var buf bytes.Buffer
	require.NoError(t, c.Document().Encode(&buf))

	doc, err := DecodeDocument(&buf)
	require.NoError(t, err)

	other, changes := newTestCanvas(t)
	require.NoError(t, other.Load(doc))

	assert.Equal(t, 2, other.Len())
	assert.False(t, other.CanUndo())
	assert.Equal(t, ChangeCanvasCleared, (*changes)[0].Type)

	layers := other.Layers()
	require.Len(t, layers, 2)
	assert.Equal(t, []string{first.ID}, layers[0].Objects)
	assert.Equal(t, []string{second.ID}, layers[1].Objects)
	assert.Equal(t, l.ID, other.ActiveLayer().ID)

	got, _ := other.Object(second.ID)
	assert.InDelta(t, 0.5, got.Opacity, 1e-9)

	next := other.AddLayer()
	assert.Equal(t, "layer-3", next.ID)
}

func TestChangeCarriesCopy(t *testing.T) {
	c, changes := newTestCanvas(t)
	obj := c.Create(KindRect, nil)
	(*changes)[0].Object.Fill = "mutated"

	got, _ := c.Object(obj.ID)
	assert.NotEqual(t, "mutated", got.Fill)

	data, err := json.Marshal((*changes)[0].Object)
	require.NoError(t, err)
	assert.Contains(t, string(data), obj.ID)
}
