package navmesh

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gorustyt/navbake/detour"
)

// Engine answers path queries against one baked tile. It is safe for
// concurrent use; each in-flight query borrows its own node pool.
type Engine struct {
	blob    Blob
	nav     *detour.DtNavMesh
	filter  *detour.DtQueryFilter
	extents [3]float32
	queries sync.Pool
}

func NewEngine(blob Blob, agent AgentConfig) (*Engine, error) {
	maxNodes := int(agent.QueryMaxSearchNodes)
	if maxNodes <= 0 || maxNodes > math.MaxUint16 {
		return nil, fmt.Errorf("%w: queryMaxSearchNodes = %d", ErrQueryInitFailed, maxNodes)
	}
	nav, err := detour.NewNavMesh(blob.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryInitFailed, err)
	}
	first, err := detour.NewDtNavMeshQuery(nav, maxNodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryInitFailed, err)
	}

	ext := agent.QueryExtent()
	e := &Engine{
		blob:    blob,
		nav:     nav,
		filter:  detour.NewDtQueryFilter(),
		extents: [3]float32{ext, ext, ext},
	}
	e.queries.New = func() any {
		// maxNodes was accepted above, so this cannot fail.
		q, _ := detour.NewDtNavMeshQuery(nav, maxNodes)
		return q
	}
	e.queries.Put(first)
	return e, nil
}

func (e *Engine) Blob() Blob        { return e.blob }
func (e *Engine) AreaSize() float32 { return e.blob.AreaSize }

func (e *Engine) PolyCount() int {
	return int(e.nav.GetTile(0).Header.PolyCount)
}

func (e *Engine) acquire() *detour.DtNavMeshQuery {
	return e.queries.Get().(*detour.DtNavMeshQuery)
}

// FindPath returns the waypoints from start to end, both in world space.
// modelToWorld places the baked geometry in the world. An empty Path means
// no complete path exists.
func (e *Engine) FindPath(start, end mgl32.Vec3, modelToWorld mgl32.Mat4) Path {
	toModel := modelToWorld.Inv()
	s := mgl32.TransformCoordinate(start, toModel)
	t := mgl32.TransformCoordinate(end, toModel)

	q := e.acquire()
	defer e.queries.Put(q)

	startRef, startPt, _, status := q.FindNearestPoly(s[:], e.extents[:], e.filter)
	if status.Failed() || startRef == 0 {
		return nil
	}
	endRef, endPt, _, status := q.FindNearestPoly(t[:], e.extents[:], e.filter)
	if status.Failed() || endRef == 0 {
		return nil
	}

	corridor := make([]detour.DtPolyRef, MaxPathLength)
	n, status := q.FindPath(startRef, endRef, startPt[:], endPt[:], e.filter, corridor)
	// A corridor cut short by the buffer is still walked; one that misses
	// the end polygon is not.
	if status.Failed() || status.Detail(detour.DT_PARTIAL_RESULT|detour.DT_OUT_OF_NODES) || n == 0 {
		return nil
	}

	pts := make([]float32, MaxPathLength*3)
	count, status := q.FindStraightPath(startPt[:], endPt[:], corridor[:n], pts, nil, nil)
	if status.Failed() || count == 0 {
		return nil
	}

	path := make(Path, count)
	for i := range path {
		p := mgl32.Vec3{pts[i*3], pts[i*3+1], pts[i*3+2]}
		path[i] = mgl32.TransformCoordinate(p, modelToWorld)
	}
	return path
}

// NearestPoint snaps p to the closest point on the navigation surface within
// the agent's query extents.
func (e *Engine) NearestPoint(p mgl32.Vec3, modelToWorld mgl32.Mat4) (mgl32.Vec3, bool) {
	local := mgl32.TransformCoordinate(p, modelToWorld.Inv())
	q := e.acquire()
	defer e.queries.Put(q)

	ref, pt, _, status := q.FindNearestPoly(local[:], e.extents[:], e.filter)
	if status.Failed() || ref == 0 {
		return mgl32.Vec3{}, false
	}
	return mgl32.TransformCoordinate(mgl32.Vec3(pt), modelToWorld), true
}
