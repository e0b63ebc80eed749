package state

import "go.uber.org/zap"

const DefaultHistoryCapacity = 50

// RecordFilter decides whether an added object becomes an undoable entry.
type RecordFilter func(obj *SceneObject) bool

// History tracks object additions so they can be undone and redone. Only
// additions are recorded; modifications and removals are not undoable.
//
// History observes its scene graph. It is not safe for concurrent use.
type History struct {
	undo      *Stack[*SceneObject]
	redo      *Stack[*SceneObject]
	scene     SceneGraph
	filter    RecordFilter
	replaying bool
	logger    *zap.Logger
}

// NewHistory records the additions seen on scene. A capacity of zero or less
// means DefaultHistoryCapacity.
func NewHistory(scene SceneGraph, capacity int, logger *zap.Logger) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	h := &History{
		undo:   NewStack[*SceneObject](capacity),
		redo:   NewStack[*SceneObject](capacity),
		scene:  scene,
		logger: logger.Named("history"),
	}
	if scene != nil {
		scene.Observe(h.onScene)
	}
	return h
}

// SetFilter installs the predicate consulted for every scene addition.
func (h *History) SetFilter(filter RecordFilter) {
	h.filter = filter
}

func (h *History) onScene(event SceneEventType, obj *SceneObject) {
	if event != SceneObjectAdded || h.replaying {
		return
	}
	if h.filter != nil && !h.filter(obj) {
		return
	}
	h.Record(obj)
}

// Record pushes obj as the newest undoable entry and clears the redo stack.
func (h *History) Record(obj *SceneObject) {
	if evicted, ok := h.undo.Push(obj); ok {
		h.logger.Debug("History full, evicted oldest entry", zap.String("objectId", evicted.ID))
	}
	h.redo.Clear()
}

// Undo removes the most recently added object from the scene.
func (h *History) Undo() bool {
	obj, ok := h.undo.Pop()
	if !ok {
		return false
	}
	if h.scene != nil {
		h.scene.Remove(obj)
	}
	h.redo.Push(obj)
	return true
}

// Redo re-inserts the most recently undone object without recording it again.
func (h *History) Redo() bool {
	obj, ok := h.redo.Pop()
	if !ok {
		return false
	}
	if h.scene != nil {
		h.replaying = true
		h.scene.Add(obj)
		h.replaying = false
	}
	h.undo.Push(obj)
	return true
}

// Forget drops every entry for the object ids from both stacks. Objects folded
// into a group or expanded out of one are no longer what was recorded.
func (h *History) Forget(ids ...string) int {
	if len(ids) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	match := func(obj *SceneObject) bool {
		_, ok := set[obj.ID]
		return ok
	}
	n := h.undo.Remove(match) + h.redo.Remove(match)
	if n > 0 {
		h.logger.Debug("History entries forgotten", zap.Int("entries", n))
	}
	return n
}

// CanUndo reports whether there is an entry to undo.
func (h *History) CanUndo() bool { return !h.undo.Empty() }
// CanRedo reports whether there is an entry to redo.
func (h *History) CanRedo() bool { return !h.redo.Empty() }

// UndoLen returns the number of undoable entries.
func (h *History) UndoLen() int { return h.undo.Len() }
// RedoLen returns the number of redoable entries.
func (h *History) RedoLen() int { return h.redo.Len() }

// Clear empties both stacks.
func (h *History) Clear() {
	h.undo.Clear()
	h.redo.Clear()
}
