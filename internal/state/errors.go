package state

import "errors"

var (
	ErrLayerNotFound    = errors.New("layer not found")
	ErrLastLayer        = errors.New("cannot remove the last layer")
	ErrInvalidBlendMode = errors.New("invalid blend mode")
	ErrInvalidLayerType = errors.New("invalid layer type")
	ErrNotGrouped       = errors.New("layer is not grouped")
	ErrEmptyLayer       = errors.New("layer has no objects")
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidSnapshot = errors.New("invalid object snapshot")
)
