package state

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStackEvictsOldest(t *testing.T) {
	s := NewStack[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := s.Push(i)
		assert.False(t, evicted)
	}
	old, evicted := s.Push(4)
	assert.True(t, evicted)
	assert.Equal(t, 1, old)
	assert.Equal(t, []int{2, 3, 4}, s.Items())

	top, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 4, top)
	peek, _ := s.Peek()
	assert.Equal(t, 3, peek)

	s.Clear()
	assert.True(t, s.Empty())
	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestStackRemoveKeepsOrder(t *testing.T) {
	s := NewStack[int](5)
	for i := 1; i <= 5; i++ {
		s.Push(i)
	}
	n := s.Remove(func(v int) bool { return v%2 == 0 })
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 3, 5}, s.Items())
	assert.Equal(t, 0, s.Remove(func(int) bool { return false }))
}

func TestHistoryForget(t *testing.T) {
	scene := NewScene(zap.NewNop())
	reg := NewRegistry(scene)
	h := NewHistory(scene, 0, zap.NewNop())

	a := reg.Create(KindRect, nil)
	b := reg.Create(KindRect, nil)
	c := reg.Create(KindRect, nil)
	require.True(t, h.Undo())

	assert.Equal(t, 2, h.Forget(a.ID, c.ID, "missing"))
	assert.Equal(t, 1, h.UndoLen())
	assert.Equal(t, 0, h.RedoLen())
	assert.Equal(t, 0, h.Forget())

	require.True(t, h.Undo())
	_, ok := scene.Find(b.ID)
	assert.False(t, ok)
	_, ok = scene.Find(a.ID)
	assert.True(t, ok)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	scene := NewScene(zap.NewNop())
	reg := NewRegistry(scene)
	h := NewHistory(scene, 0, zap.NewNop())

	obj := reg.Create(KindCircle, nil)
	assert.Equal(t, 1, h.UndoLen())

	require.True(t, h.Undo())
	_, ok := reg.FindByID(obj.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, h.RedoLen())

	require.True(t, h.Redo())
	found, ok := reg.FindByID(obj.ID)
	require.True(t, ok)
	assert.Same(t, obj, found)
	assert.Equal(t, 1, h.UndoLen(), "redo must not record twice")
	assert.Equal(t, 0, h.RedoLen())
}

func TestUndoRedoOnEmptyHistory(t *testing.T) {
	scene := NewScene(zap.NewNop())
	h := NewHistory(scene, 5, zap.NewNop())
	assert.False(t, h.Undo())
	assert.False(t, h.Redo())
	assert.Equal(t, 0, scene.Len())
}

func TestRecordClearsRedo(t *testing.T) {
	scene := NewScene(zap.NewNop())
	reg := NewRegistry(scene)
	h := NewHistory(scene, 5, zap.NewNop())

	reg.Create(KindRect, nil)
	require.True(t, h.Undo())
	require.True(t, h.CanRedo())

	reg.Create(KindRect, nil)
	assert.False(t, h.CanRedo())
}

func TestHistoryCapacity(t *testing.T) {
	scene := NewScene(zap.NewNop())
	reg := NewRegistry(scene)
	h := NewHistory(scene, DefaultHistoryCapacity, zap.NewNop())

	var objs []*SceneObject
	for i := 0; i < DefaultHistoryCapacity+1; i++ {
		props := NewObject(KindText)
		props.Text = fmt.Sprintf("note %d", i)
		objs = append(objs, reg.Create(KindText, props))
	}
	assert.Equal(t, DefaultHistoryCapacity, h.UndoLen())

	for h.Undo() {
	}
	// the first object fell off the stack and stays on the scene
	assert.Equal(t, 1, scene.Len())
	_, ok := reg.FindByID(objs[0].ID)
	assert.True(t, ok)
}

func TestHistoryFilter(t *testing.T) {
	scene := NewScene(zap.NewNop())
	reg := NewRegistry(scene)
	h := NewHistory(scene, 5, zap.NewNop())
	h.SetFilter(func(obj *SceneObject) bool { return obj.Kind != KindGroup })

	reg.Create(KindGroup, nil)
	assert.Equal(t, 0, h.UndoLen())
	reg.Create(KindRect, nil)
	assert.Equal(t, 1, h.UndoLen())
}
