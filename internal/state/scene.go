package state

import (
	"sync"

	"go.uber.org/zap"
)

// SceneEventType is the notification a scene graph emits after a mutation.
type SceneEventType string

const (
	SceneObjectAdded    SceneEventType = "object:added"
	SceneObjectModified SceneEventType = "object:modified"
	SceneObjectRemoved  SceneEventType = "object:removed"
)

// SceneObserver is called synchronously after the scene has changed.
type SceneObserver func(event SceneEventType, obj *SceneObject)

// SceneGraph is the boundary to the rendering engine's live object collection.
type SceneGraph interface {
	Add(obj *SceneObject) bool
	Remove(obj *SceneObject) bool
	Modify(obj *SceneObject, src *SceneObject) bool
	Objects() []*SceneObject
	Find(id string) (*SceneObject, bool)
	Observe(fn SceneObserver)
	RequestRender()
}

// Scene is an in-memory SceneGraph. Paint order is insertion order.
type Scene struct {
	mu        sync.RWMutex
	order     []*SceneObject
	index     map[string]*SceneObject
	observers []SceneObserver
	renders   int
	logger    *zap.Logger
}

var _ SceneGraph = (*Scene)(nil)

// NewScene returns an empty scene graph.
func NewScene(logger *zap.Logger) *Scene {
	return &Scene{
		index:  make(map[string]*SceneObject),
		logger: logger.Named("scene"),
	}
}

// Observe registers fn for every later notification.
func (s *Scene) Observe(fn SceneObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Add inserts obj. An object whose id is already present is ignored.
func (s *Scene) Add(obj *SceneObject) bool {
	s.mu.Lock()
	if obj.ID != "" {
		if _, exists := s.index[obj.ID]; exists {
			s.mu.Unlock()
			s.logger.Debug("Object already in scene, ignoring", zap.String("objectId", obj.ID))
			return false
		}
		s.index[obj.ID] = obj
	}
	s.order = append(s.order, obj)
	s.mu.Unlock()

	s.notify(SceneObjectAdded, obj)
	return true
}

// Remove deletes obj. Removing an absent object is a no-op.
func (s *Scene) Remove(obj *SceneObject) bool {
	s.mu.Lock()
	pos := -1
	for i, o := range s.order {
		if o == obj || (obj.ID != "" && o.ID == obj.ID) {
			pos = i
			break
		}
	}
	if pos < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.order[pos]
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	if removed.ID != "" {
		delete(s.index, removed.ID)
	}
	s.mu.Unlock()

	s.notify(SceneObjectRemoved, removed)
	return true
}

// Modify overwrites obj's drawable properties with src.
func (s *Scene) Modify(obj *SceneObject, src *SceneObject) bool {
	s.mu.Lock()
	if current, ok := s.index[obj.ID]; !ok || current != obj {
		s.mu.Unlock()
		return false
	}
	obj.assign(src)
	s.mu.Unlock()

	s.notify(SceneObjectModified, obj)
	return true
}

// Objects returns the top-level objects in paint order.
func (s *Scene) Objects() []*SceneObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objs := make([]*SceneObject, len(s.order))
	copy(objs, s.order)
	return objs
}

// Find returns the top-level object with id.
func (s *Scene) Find(id string) (*SceneObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.index[id]
	return obj, ok
}

// Len returns the number of top-level objects.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// RequestRender marks the scene dirty. The viewer polls Renders to repaint.
func (s *Scene) RequestRender() {
	s.mu.Lock()
	s.renders++
	s.mu.Unlock()
}

// Renders returns how many renders have been requested.
func (s *Scene) Renders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renders
}

func (s *Scene) notify(event SceneEventType, obj *SceneObject) {
	s.mu.RLock()
	observers := make([]SceneObserver, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, fn := range observers {
		fn(event, obj)
	}
}
