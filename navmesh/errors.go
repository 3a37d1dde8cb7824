package navmesh

import "errors"

var (
	ErrMissingAttribute      = errors.New("navmesh: vertex position attribute not found")
	ErrMalformedVertexBuffer = errors.New("navmesh: malformed vertex buffer")
	ErrInvalidConfig         = errors.New("navmesh: invalid agent config")
	ErrEmptyGrid             = errors.New("navmesh: mesh bounds produce an empty grid")
	ErrNoSuchMesh            = errors.New("navmesh: concerned mesh index out of range")
	ErrVoxelizationFailed    = errors.New("navmesh: voxelization failed")
	ErrRegionBuildFailed     = errors.New("navmesh: region build failed")
	ErrPolygonBuildFailed    = errors.New("navmesh: polygon build failed")
	ErrAssemblyFailed        = errors.New("navmesh: navmesh assembly failed")
	ErrQueryInitFailed       = errors.New("navmesh: query init failed")
)
