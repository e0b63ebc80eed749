package state

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ChangeType names a mutation published to Canvas subscribers. The values match
// the sync event types.
type ChangeType string

const (
	ChangeObjectAdded    ChangeType = "object:added"
	ChangeObjectModified ChangeType = "object:modified"
	ChangeObjectRemoved  ChangeType = "object:removed"
	ChangeCanvasCleared  ChangeType = "canvas:clear"
	ChangeLayerUpdated   ChangeType = "layer:updated"
)

// Change is a copy of what happened during one canvas turn.
type Change struct {
	Type   ChangeType
	Object *SceneObject
	Layer  *Layer
	Origin Origin
}

type Subscriber func(Change)

type Options struct {
	HistoryCapacity int
}

// Canvas is one document: the scene graph with its registry, layer model,
// history and provenance map. Every method is one turn under a single mutex.
// Subscribers run inside the turn and must not call back into the Canvas.
type Canvas struct {
	mu          sync.Mutex
	scene       *Scene
	registry    *Registry
	layers      *LayerModel
	history     *History
	provenance  *Provenance
	subscribers []Subscriber

	// structural is set while grouping rewrites membership.
	structural bool
	// silent suppresses publication (bulk clear, document load).
	silent bool

	logger *zap.Logger
}

// NewCanvas returns an empty canvas with just the base layer.
func NewCanvas(logger *zap.Logger, opts Options) *Canvas {
	logger = logger.Named("canvas")
	scene := NewScene(logger)
	c := &Canvas{
		scene:      scene,
		registry:   NewRegistry(scene),
		provenance: NewProvenance(),
		logger:     logger,
	}
	// Observer order matters: membership first, then history, then peers.
	c.layers = NewLayerModel(scene, logger)
	c.history = NewHistory(scene, opts.HistoryCapacity, logger)
	c.history.SetFilter(c.shouldRecord)
	scene.Observe(c.onScene)
	return c
}

func (c *Canvas) shouldRecord(obj *SceneObject) bool {
	return !c.structural && !c.silent && c.provenance.Origin(obj.ID) == OriginLocal
}

func (c *Canvas) onScene(event SceneEventType, obj *SceneObject) {
	if c.silent {
		return
	}
	var t ChangeType
	switch event {
	case SceneObjectAdded:
		t = ChangeObjectAdded
	case SceneObjectModified:
		t = ChangeObjectModified
	case SceneObjectRemoved:
		t = ChangeObjectRemoved
	default:
		return
	}
	c.publish(Change{Type: t, Object: obj.Clone(), Origin: c.provenance.Origin(obj.ID)})
}

func (c *Canvas) publish(change Change) {
	for _, fn := range c.subscribers {
		fn(change)
	}
}

func (c *Canvas) publishLayer(id string) {
	if l, ok := c.layers.Layer(id); ok {
		c.publish(Change{Type: ChangeLayerUpdated, Layer: &l, Origin: OriginLocal})
	}
}

// Subscribe registers fn for every later change.
func (c *Canvas) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Create adds a locally drawn object to the active layer and returns a copy.
func (c *Canvas) Create(kind Kind, props *SceneObject) *SceneObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj := c.registry.Create(kind, props)
	if obj == nil {
		return nil
	}
	return obj.Clone()
}

// Modify overwrites the drawable properties of a local object.
func (c *Canvas) Modify(id string, props *SceneObject) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.registry.FindByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	c.scene.Modify(obj, props)
	c.scene.RequestRender()
	return nil
}

// Remove deletes the object and reports whether it existed.
func (c *Canvas) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Remove(id)
}

// Clear removes every object and publishes a single clear.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear(OriginLocal)
}

func (c *Canvas) clear(origin Origin) {
	c.silent = true
	for _, obj := range c.scene.Objects() {
		c.scene.Remove(obj)
	}
	c.silent = false
	c.scene.RequestRender()
	c.publish(Change{Type: ChangeCanvasCleared, Origin: origin})
}

// Undo removes the newest local addition.
func (c *Canvas) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Undo()
}

// Redo restores the newest undone addition.
func (c *Canvas) Redo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Redo()
}

// CanUndo reports whether Undo has anything to do.
func (c *Canvas) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.CanUndo()
}

// CanRedo reports whether Redo has anything to do.
func (c *Canvas) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.CanRedo()
}

// Object returns a copy of the object with id.
func (c *Canvas) Object(id string) (*SceneObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.registry.FindByID(id)
	if !ok {
		return nil, false
	}
	return obj.Clone(), true
}

// Objects returns copies in paint order.
func (c *Canvas) Objects() []*SceneObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	objs := c.scene.Objects()
	out := make([]*SceneObject, len(objs))
	for i, obj := range objs {
		out[i] = obj.Clone()
	}
	return out
}

// Len returns the number of top-level objects.
func (c *Canvas) Len() int {
	return c.scene.Len()
}

// Renders counts render requests so a viewer can repaint when it changes.
func (c *Canvas) Renders() int {
	return c.scene.Renders()
}

// ApplyAdded inserts an object received from a peer. A snapshot whose id is
// already present is ignored.
func (c *Canvas) ApplyAdded(snapshot []byte) error {
	obj, err := ObjectFromSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if obj.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	release := c.provenance.Mark(obj.ID, OriginRemote)
	defer release()

	c.registry.Insert(obj)
	c.scene.RequestRender()
	return nil
}

// ApplyModified overwrites the local object carrying the snapshot's id. Last
// writer wins; nothing is merged.
func (c *Canvas) ApplyModified(snapshot []byte) error {
	src, err := ObjectFromSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.registry.FindByID(src.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, src.ID)
	}
	release := c.provenance.Mark(obj.ID, OriginRemote)
	defer release()

	c.scene.Modify(obj, src)
	c.scene.RequestRender()
	return nil
}

// ApplyRemoved removes every local object carrying id. Unknown ids are a no-op.
func (c *Canvas) ApplyRemoved(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	release := c.provenance.Mark(id, OriginRemote)
	defer release()

	for _, obj := range c.registry.FindAll(id) {
		c.scene.Remove(obj)
	}
	c.scene.RequestRender()
}

// ApplyClear removes every object on behalf of a peer.
func (c *Canvas) ApplyClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear(OriginRemote)
}

// Origin reports the provenance of an object's in-flight mutation.
func (c *Canvas) Origin(id string) Origin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provenance.Origin(id)
}

// Layers returns copies of the layers, bottom to top.
func (c *Canvas) Layers() []Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.Layers()
}

// Layer returns a copy of the layer with id.
func (c *Canvas) Layer(id string) (Layer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.Layer(id)
}

// ActiveLayer returns a copy of the layer new objects land on.
func (c *Canvas) ActiveLayer() Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.Active()
}

// SetActiveLayer makes id the target for new objects.
func (c *Canvas) SetActiveLayer(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.SetActive(id)
}

// AddLayer puts a new active layer on top.
func (c *Canvas) AddLayer() Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.layers.AddLayer()
	c.publishLayer(l.ID)
	return l
}

// RemoveLayer deletes the layer together with its objects.
func (c *Canvas) RemoveLayer(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layers.RemoveLayer(id)
}

// SetLayerVisibility shows or hides every member of the layer.
func (c *Canvas) SetLayerVisibility(id string, visible bool) error {
	return c.layerOp(id, func() error { return c.layers.SetVisibility(id, visible) })
}

// SetLayerOpacity scales the opacity of every member of the layer.
func (c *Canvas) SetLayerOpacity(id string, opacity float64) error {
	return c.layerOp(id, func() error { return c.layers.SetOpacity(id, opacity) })
}

// SetLayerBlendMode sets how the layer composites onto those below.
func (c *Canvas) SetLayerBlendMode(id string, mode BlendMode) error {
	return c.layerOp(id, func() error { return c.layers.SetBlendMode(id, mode) })
}

// SetLayerLocked freezes or unfreezes the layer's members.
func (c *Canvas) SetLayerLocked(id string, locked bool) error {
	return c.layerOp(id, func() error { return c.layers.SetLocked(id, locked) })
}

// ToggleLayerLock flips the layer's lock.
func (c *Canvas) ToggleLayerLock(id string) error {
	return c.layerOp(id, func() error { return c.layers.ToggleLock(id) })
}

// SetLayerType changes the layer's type.
func (c *Canvas) SetLayerType(id string, t LayerType) error {
	return c.layerOp(id, func() error { return c.layers.SetType(id, t) })
}

// RenameLayer sets the layer's display name.
func (c *Canvas) RenameLayer(id, name string) error {
	return c.layerOp(id, func() error { return c.layers.Rename(id, name) })
}

// MoveLayerUp swaps the layer with the one above it.
func (c *Canvas) MoveLayerUp(id string) error {
	return c.layerOp(id, func() error { return c.layers.MoveUp(id) })
}

// MoveLayerDown swaps the layer with the one below it.
func (c *Canvas) MoveLayerDown(id string) error {
	return c.layerOp(id, func() error { return c.layers.MoveDown(id) })
}

// GroupLayer merges the layer's members into one group object. The rewrite is
// sent to peers but is not undoable.
func (c *Canvas) GroupLayer(id string) (*SceneObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structural = true
	defer func() { c.structural = false }()

	group, err := c.layers.GroupMembers(id)
	if err != nil {
		return nil, err
	}
	members := make([]string, len(group.Objects))
	for i, member := range group.Objects {
		members[i] = member.ID
	}
	c.history.Forget(members...)
	c.publishLayer(id)
	return group.Clone(), nil
}

// UngroupLayer expands the layer's group back into its members.
func (c *Canvas) UngroupLayer(id string) ([]*SceneObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structural = true
	defer func() { c.structural = false }()

	var groupID string
	if l, ok := c.layers.Layer(id); ok {
		groupID = l.Group
	}
	children, err := c.layers.UngroupMembers(id)
	if err != nil {
		return nil, err
	}
	c.publishLayer(id)
	out := make([]*SceneObject, len(children))
	forget := []string{groupID}
	for i, child := range children {
		out[i] = child.Clone()
		forget = append(forget, child.ID)
	}
	c.history.Forget(forget...)
	return out, nil
}

func (c *Canvas) layerOp(id string, op func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := op(); err != nil {
		return err
	}
	c.publishLayer(id)
	return nil
}
