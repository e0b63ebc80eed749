package state

import "encoding/json"

// Kind names the drawable primitive behind a SceneObject.
type Kind string

const (
	KindPath    Kind = "path"
	KindLine    Kind = "line"
	KindRect    Kind = "rect"
	KindCircle  Kind = "circle"
	KindEllipse Kind = "ellipse"
	KindPolygon Kind = "polygon"
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindGroup   Kind = "group"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SceneObject is a drawable primitive. Geometry and style belong to the renderer;
// the engine only owns ID, LayerID and BaseOpacity.
type SceneObject struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"type"`
	LayerID string `json:"layerId,omitempty"`

	Opacity     float64  `json:"opacity"`
	BaseOpacity *float64 `json:"baseOpacity,omitempty"`
	Visible     bool     `json:"visible"`
	Selectable  bool     `json:"selectable"`
	Evented     bool     `json:"evented"`

	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Radius float64 `json:"radius,omitempty"`
	RX     float64 `json:"rx,omitempty"`
	RY     float64 `json:"ry,omitempty"`
	Angle  float64 `json:"angle,omitempty"`
	ScaleX float64 `json:"scaleX,omitempty"`
	ScaleY float64 `json:"scaleY,omitempty"`

	Fill        string  `json:"fill,omitempty"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	Points      []Point `json:"points,omitempty"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Src        string  `json:"src,omitempty"`

	Objects []*SceneObject `json:"objects,omitempty"`
}

// NewObject returns an object with the renderer defaults: fully opaque, visible
// and selectable.
func NewObject(kind Kind) *SceneObject {
	return &SceneObject{
		Kind:       kind,
		Opacity:    1,
		Visible:    true,
		Selectable: true,
		Evented:    true,
		ScaleX:     1,
		ScaleY:     1,
	}
}

// Clone returns a deep copy.
func (o *SceneObject) Clone() *SceneObject {
	c := *o
	if o.BaseOpacity != nil {
		base := *o.BaseOpacity
		c.BaseOpacity = &base
	}
	if o.Points != nil {
		c.Points = append([]Point(nil), o.Points...)
	}
	if o.Objects != nil {
		c.Objects = make([]*SceneObject, len(o.Objects))
		for i, child := range o.Objects {
			c.Objects[i] = child.Clone()
		}
	}
	return &c
}

// assign overwrites the drawable properties of o with those of src. Identity and
// layer are kept. The local base opacity survives only while src leaves the
// effective opacity alone; a new opacity is authored and the layer model
// derives a fresh base from it.
func (o *SceneObject) assign(src *SceneObject) {
	id, layerID, base, effective := o.ID, o.LayerID, o.BaseOpacity, o.Opacity
	*o = *src.Clone()
	o.ID = id
	o.LayerID = layerID
	o.BaseOpacity = base
	if o.Opacity != effective {
		o.BaseOpacity = nil
	}
}

// Snapshot is the transport-safe structural form of an object.
func (o *SceneObject) Snapshot() (json.RawMessage, error) {
	return json.Marshal(o)
}

// ObjectFromSnapshot decodes a snapshot produced by Snapshot or by a peer.
func ObjectFromSnapshot(data []byte) (*SceneObject, error) {
	obj := NewObject("")
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, err
	}
	return obj, nil
}
