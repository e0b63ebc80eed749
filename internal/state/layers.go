package state

import (
	"fmt"

	"go.uber.org/zap"
)

const BaseLayerID = "base"

// Layer is one compositing plane of a document. Objects holds member ids in
// insertion order, not paint order.
type Layer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Objects   []string  `json:"objects"`
	Visible   bool      `json:"visible"`
	Opacity   float64   `json:"opacity"`
	ZIndex    int       `json:"zIndex"`
	Locked    bool      `json:"locked"`
	BlendMode BlendMode `json:"blendMode"`
	Group     string    `json:"group,omitempty"`
	Type      LayerType `json:"type"`
	Editable  bool      `json:"editable"`
}

func (l *Layer) clone() Layer {
	c := *l
	c.Objects = append([]string(nil), l.Objects...)
	return c
}

func (l *Layer) has(id string) bool {
	for _, member := range l.Objects {
		if member == id {
			return true
		}
	}
	return false
}

func (l *Layer) drop(id string) bool {
	for i, member := range l.Objects {
		if member == id {
			l.Objects = append(l.Objects[:i], l.Objects[i+1:]...)
			return true
		}
	}
	return false
}

func newLayer(id, name string, zIndex int) *Layer {
	return &Layer{
		ID:        id,
		Name:      name,
		Objects:   []string{},
		Visible:   true,
		Opacity:   1,
		ZIndex:    zIndex,
		BlendMode: BlendNormal,
		Type:      LayerPaint,
		Editable:  true,
	}
}

// LayerModel keeps the ordered layer list of one document and the membership of
// every scene object. Layers are ordered bottom to top.
//
// LayerModel observes its scene graph: added objects are assigned to a layer and
// removed objects leave their layer. It is not safe for concurrent use.
type LayerModel struct {
	layers []*Layer
	active string
	seq    int
	scene  SceneGraph
	logger *zap.Logger
}

// NewLayerModel starts with the base layer and tracks membership on scene.
func NewLayerModel(scene SceneGraph, logger *zap.Logger) *LayerModel {
	lm := &LayerModel{
		layers: []*Layer{newLayer(BaseLayerID, "Base Layer", 0)},
		active: BaseLayerID,
		seq:    1,
		scene:  scene,
		logger: logger.Named("layers"),
	}
	if scene != nil {
		scene.Observe(lm.onScene)
	}
	return lm
}

func (lm *LayerModel) onScene(event SceneEventType, obj *SceneObject) {
	switch event {
	case SceneObjectAdded:
		lm.Assign(obj)
	case SceneObjectModified:
		if l := lm.find(obj.LayerID); l != nil {
			rebase(obj, l.Opacity)
		}
	case SceneObjectRemoved:
		lm.Forget(obj.ID)
	}
}

// Layers returns copies ordered bottom to top.
func (lm *LayerModel) Layers() []Layer {
	out := make([]Layer, len(lm.layers))
	for i, l := range lm.layers {
		out[i] = l.clone()
	}
	return out
}

// Len returns the number of layers.
func (lm *LayerModel) Len() int {
	return len(lm.layers)
}

// Layer returns a copy of the layer with id.
func (lm *LayerModel) Layer(id string) (Layer, bool) {
	if l := lm.find(id); l != nil {
		return l.clone(), true
	}
	return Layer{}, false
}

// Active returns a copy of the active layer.
func (lm *LayerModel) Active() Layer {
	if l := lm.find(lm.active); l != nil {
		return l.clone()
	}
	return lm.layers[0].clone()
}

// SetActive makes id the layer new objects are assigned to.
func (lm *LayerModel) SetActive(id string) error {
	if lm.find(id) == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	lm.active = id
	return nil
}

// AddLayer appends a layer on top and activates it.
func (lm *LayerModel) AddLayer() Layer {
	lm.seq++
	l := newLayer(fmt.Sprintf("layer-%d", lm.seq), fmt.Sprintf("Layer %d", lm.seq), len(lm.layers))
	lm.layers = append(lm.layers, l)
	lm.active = l.ID
	lm.logger.Debug("Layer added", zap.String("layerId", l.ID), zap.Int("zIndex", l.ZIndex))
	return l.clone()
}

// RemoveLayer deletes the layer and its objects from the scene. The last layer
// cannot be removed.
func (lm *LayerModel) RemoveLayer(id string) error {
	pos := lm.index(id)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if len(lm.layers) <= 1 {
		return ErrLastLayer
	}
	removed := lm.layers[pos]
	lm.layers = append(lm.layers[:pos], lm.layers[pos+1:]...)
	lm.renumber()
	if lm.active == id {
		lm.active = lm.layers[0].ID
	}

	if lm.scene != nil {
		for _, member := range removed.Objects {
			if obj, ok := lm.scene.Find(member); ok {
				lm.scene.Remove(obj)
			}
		}
		lm.scene.RequestRender()
	}
	lm.logger.Debug("Layer removed",
		zap.String("layerId", id),
		zap.Int("objects", len(removed.Objects)),
		zap.String("active", lm.active),
	)
	return nil
}

// SetVisibility shows or hides the layer and its members.
func (lm *LayerModel) SetVisibility(id string, visible bool) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l.Visible = visible
	lm.eachMember(l, func(obj *SceneObject) {
		obj.Visible = visible
	})
	return nil
}

// SetOpacity clamps opacity to [0,1] and recomputes every member's effective
// opacity from its base opacity.
func (lm *LayerModel) SetOpacity(id string, opacity float64) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l.Opacity = clamp01(opacity)
	lm.eachMember(l, func(obj *SceneObject) {
		composite(obj, l.Opacity)
	})
	return nil
}

// SetBlendMode sets the layer's blend mode.
func (lm *LayerModel) SetBlendMode(id string, mode BlendMode) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidBlendMode, mode)
	}
	l.BlendMode = mode
	return nil
}

// SetLocked makes the layer's members unselectable while locked.
func (lm *LayerModel) SetLocked(id string, locked bool) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l.Locked = locked
	lm.eachMember(l, func(obj *SceneObject) {
		applyEditable(obj, l)
	})
	return nil
}

// ToggleLock flips the layer's lock.
func (lm *LayerModel) ToggleLock(id string) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	return lm.SetLocked(id, !l.Locked)
}

// Rename sets the layer's display name.
func (lm *LayerModel) Rename(id, name string) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	l.Name = name
	return nil
}

// SetType changes the layer type. Leaving LayerPaint makes the layer and its
// objects non-editable. Nothing restores editability afterwards, including a
// later SetType(id, LayerPaint).
func (lm *LayerModel) SetType(id string, t LayerType) error {
	l := lm.find(id)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLayerType, t)
	}
	l.Type = t
	if t != LayerPaint {
		l.Editable = false
	}
	lm.eachMember(l, func(obj *SceneObject) {
		applyEditable(obj, l)
	})
	return nil
}

// MoveUp swaps the layer with its neighbour above. No-op at the top.
func (lm *LayerModel) MoveUp(id string) error {
	pos := lm.index(id)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if pos == len(lm.layers)-1 {
		return nil
	}
	lm.layers[pos], lm.layers[pos+1] = lm.layers[pos+1], lm.layers[pos]
	lm.renumber()
	return nil
}

// MoveDown swaps the layer with its neighbour below. No-op at the bottom.
func (lm *LayerModel) MoveDown(id string) error {
	pos := lm.index(id)
	if pos < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if pos == 0 {
		return nil
	}
	lm.layers[pos], lm.layers[pos-1] = lm.layers[pos-1], lm.layers[pos]
	lm.renumber()
	return nil
}

// AssignObjectToActiveLayer records obj under the active layer.
func (lm *LayerModel) AssignObjectToActiveLayer(obj *SceneObject) {
	obj.LayerID = ""
	lm.Assign(obj)
}

// Assign records obj under the layer it names, falling back to the active layer
// when that layer does not exist here. The object leaves any other layer.
func (lm *LayerModel) Assign(obj *SceneObject) {
	if obj == nil || obj.ID == "" {
		return
	}
	target := lm.find(obj.LayerID)
	if target == nil {
		target = lm.find(lm.active)
	}
	if target == nil {
		target = lm.layers[0]
	}
	for _, l := range lm.layers {
		if l != target {
			l.drop(obj.ID)
		}
	}
	if !target.has(obj.ID) {
		target.Objects = append(target.Objects, obj.ID)
	}
	obj.LayerID = target.ID

	obj.Visible = target.Visible
	if obj.BaseOpacity != nil || target.Opacity != 1 {
		composite(obj, target.Opacity)
	}
	applyEditable(obj, target)
}

// Forget drops id from whichever layer holds it.
func (lm *LayerModel) Forget(id string) {
	for _, l := range lm.layers {
		if l.drop(id) && l.Group == id {
			l.Group = ""
		}
	}
}

// LayerOf returns the id of the layer holding objectID.
func (lm *LayerModel) LayerOf(objectID string) (string, bool) {
	for _, l := range lm.layers {
		if l.has(objectID) {
			return l.ID, true
		}
	}
	return "", false
}

// GroupMembers replaces a layer's members with one group object holding them,
// so the layer can be moved and scaled as a unit.
func (lm *LayerModel) GroupMembers(id string) (*SceneObject, error) {
	l := lm.find(id)
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if l.Group != "" {
		if group, ok := lm.scene.Find(l.Group); ok {
			return group, nil
		}
	}
	var members []*SceneObject
	lm.eachMember(l, func(obj *SceneObject) {
		members = append(members, obj)
	})
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyLayer, id)
	}

	bounds := BoundsOf(members)
	group := NewObject(KindGroup)
	group.ID = NewObjectID()
	group.LayerID = l.ID
	group.Left, group.Top = bounds.X, bounds.Y
	group.Width, group.Height = bounds.Width, bounds.Height
	group.Objects = members

	for _, obj := range members {
		lm.scene.Remove(obj)
	}
	lm.scene.Add(group)
	l.Group = group.ID
	lm.scene.RequestRender()

	lm.logger.Debug("Layer grouped",
		zap.String("layerId", id),
		zap.String("groupId", group.ID),
		zap.Int("members", len(members)),
	)
	return group, nil
}

// UngroupMembers expands the layer's group back into individual members.
func (lm *LayerModel) UngroupMembers(id string) ([]*SceneObject, error) {
	l := lm.find(id)
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if l.Group == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotGrouped, id)
	}
	group, ok := lm.scene.Find(l.Group)
	if !ok {
		l.Group = ""
		return nil, fmt.Errorf("%w: %s", ErrNotGrouped, id)
	}

	children := group.Objects
	lm.scene.Remove(group)
	l.Group = ""
	for _, child := range children {
		child.LayerID = l.ID
		lm.scene.Add(child)
	}
	lm.scene.RequestRender()
	return children, nil
}

func (lm *LayerModel) eachMember(l *Layer, fn func(obj *SceneObject)) {
	if lm.scene == nil {
		return
	}
	for _, member := range append([]string(nil), l.Objects...) {
		if obj, ok := lm.scene.Find(member); ok {
			fn(obj)
		}
	}
	lm.scene.RequestRender()
}

func (lm *LayerModel) find(id string) *Layer {
	if pos := lm.index(id); pos >= 0 {
		return lm.layers[pos]
	}
	return nil
}

func (lm *LayerModel) index(id string) int {
	for i, l := range lm.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// renumber sets zIndex = count-1-positionFromTop, which is the bottom-up index.
func (lm *LayerModel) renumber() {
	n := len(lm.layers)
	for i, l := range lm.layers {
		positionFromTop := n - 1 - i
		l.ZIndex = n - 1 - positionFromTop
	}
}

// restore replaces the model state wholesale (document load).
func (lm *LayerModel) restore(layers []Layer, active string) {
	lm.layers = lm.layers[:0]
	for i := range layers {
		l := layers[i].clone()
		if l.Objects == nil {
			l.Objects = []string{}
		}
		lm.layers = append(lm.layers, &l)
	}
	if len(lm.layers) == 0 {
		lm.layers = append(lm.layers, newLayer(BaseLayerID, "Base Layer", 0))
	}
	lm.renumber()
	lm.active = lm.layers[0].ID
	if lm.find(active) != nil {
		lm.active = active
	}
	lm.seq = len(lm.layers)
	for _, l := range lm.layers {
		var n int
		if _, err := fmt.Sscanf(l.ID, "layer-%d", &n); err == nil && n > lm.seq {
			lm.seq = n
		}
	}
}

// reattachGroup marks a layer as grouped when its only member is a group.
func (lm *LayerModel) reattachGroup(id string) {
	l := lm.find(id)
	if l == nil || lm.scene == nil || len(l.Objects) != 1 {
		return
	}
	if obj, ok := lm.scene.Find(l.Objects[0]); ok && obj.Kind == KindGroup {
		l.Group = obj.ID
	}
}

func composite(obj *SceneObject, layerOpacity float64) {
	if obj.BaseOpacity == nil {
		base := obj.Opacity
		obj.BaseOpacity = &base
	}
	obj.Opacity = *obj.BaseOpacity * layerOpacity
}

// rebase composites obj after a modify. Without a base, obj.Opacity is the
// effective value its author saw through the layer, so the base is derived
// from it. A fully transparent layer hides the ratio; the authored value is
// then taken as the base.
func rebase(obj *SceneObject, layerOpacity float64) {
	if obj.BaseOpacity == nil {
		if layerOpacity == 1 {
			return
		}
		base := obj.Opacity
		if layerOpacity > 0 {
			base = clamp01(obj.Opacity / layerOpacity)
		}
		obj.BaseOpacity = &base
	}
	obj.Opacity = *obj.BaseOpacity * layerOpacity
}

func applyEditable(obj *SceneObject, l *Layer) {
	editable := l.Editable && !l.Locked
	obj.Selectable = editable
	obj.Evented = editable
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
