package state

import (
	"github.com/google/uuid"
)

// Registry hands out object identities and resolves them against the scene graph.
// The scene graph stays the object store.
type Registry struct {
	scene SceneGraph
}

// NewRegistry creates and looks up objects on scene.
func NewRegistry(scene SceneGraph) *Registry {
	return &Registry{scene: scene}
}

// NewObjectID returns a globally unique object id.
func NewObjectID() string {
	return uuid.NewString()
}

// Create assigns a fresh id to a copy of props with the given kind and inserts it
// into the scene. It returns nil when there is no scene graph.
func (r *Registry) Create(kind Kind, props *SceneObject) *SceneObject {
	if r == nil || r.scene == nil {
		return nil
	}
	var obj *SceneObject
	if props != nil {
		obj = props.Clone()
	} else {
		obj = NewObject(kind)
	}
	obj.Kind = kind
	obj.ID = NewObjectID()
	obj.LayerID = ""
	obj.BaseOpacity = nil
	r.scene.Add(obj)
	return obj
}

// Insert adds an object that already carries an identity (remote objects, redo).
// Objects without an id are given one; an existing id is never replaced.
func (r *Registry) Insert(obj *SceneObject) bool {
	if r == nil || r.scene == nil || obj == nil {
		return false
	}
	if obj.ID == "" {
		obj.ID = NewObjectID()
	}
	return r.scene.Add(obj)
}

// FindByID never fails: unknown ids report false.
func (r *Registry) FindByID(id string) (*SceneObject, bool) {
	if r == nil || r.scene == nil || id == "" {
		return nil, false
	}
	return r.scene.Find(id)
}

// FindAll returns every scene member carrying id.
func (r *Registry) FindAll(id string) []*SceneObject {
	if r == nil || r.scene == nil {
		return nil
	}
	var matches []*SceneObject
	for _, obj := range r.scene.Objects() {
		if obj.ID == id {
			matches = append(matches, obj)
		}
	}
	return matches
}

// Remove is idempotent.
func (r *Registry) Remove(id string) bool {
	obj, ok := r.FindByID(id)
	if !ok {
		return false
	}
	return r.scene.Remove(obj)
}

// Scene returns the scene graph the registry works on.
func (r *Registry) Scene() SceneGraph {
	if r == nil {
		return nil
	}
	return r.scene
}
