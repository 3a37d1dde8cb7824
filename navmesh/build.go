package navmesh

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/gorustyt/navbake/common/logger"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/recast"
)

type BuildOptions struct {
	Logger *zap.Logger
	// NoCache makes LoadOrBuild ignore an existing cache file. The fresh
	// result is still written back.
	NoCache bool
}

func stageFailed(log *zap.Logger, sentinel error, stage string, err error) error {
	log.Error("navmesh build stage failed", zap.String("stage", stage), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", sentinel, stage, err)
}

// Build runs the full bake of the concerned mesh of model and returns the
// assembled tile. ctx is checked between stages only.
func Build(ctx context.Context, model *Model, agent AgentConfig, opts BuildOptions) (Blob, error) {
	log := logger.OrNop(opts.Logger).With(zap.String("file", model.File))

	idx := int(agent.ConcernedMeshIndex)
	if idx < 0 || idx >= len(model.Meshes) {
		log.Error("concerned mesh out of range", zap.Int("index", idx), zap.Int("meshes", len(model.Meshes)))
		return Blob{}, fmt.Errorf("%w: index %d, %d meshes", ErrNoSuchMesh, idx, len(model.Meshes))
	}
	mesh := &model.Meshes[idx]

	verts, err := ExtractPositions(mesh)
	if err != nil {
		log.Error("position extraction failed", zap.Error(err))
		return Blob{}, err
	}
	cfg, err := DeriveConfig(agent, verts)
	if err != nil {
		log.DPanic("build config rejected", zap.Error(err))
		return Blob{}, err
	}

	rc := recast.NewRcContext(log)
	rc.ResetTimers()
	rc.StartTimer(recast.RC_TIMER_TOTAL)
	log.Debug("building navigation",
		zap.Int("width", cfg.Width), zap.Int("height", cfg.Height),
		zap.Int("verts", len(verts)/3), zap.Int("tris", mesh.TriangleCount()))

	// Voxelize.
	tris := mesh.Indices.Widen()
	ntris := len(tris) / 3
	nverts := int32(len(verts) / 3)
	for i, v := range tris[:ntris*3] {
		if v < 0 || v >= nverts {
			return Blob{}, stageFailed(log, ErrVoxelizationFailed, "rasterize",
				fmt.Errorf("index %d references vertex %d of %d", i, v, nverts))
		}
	}
	hf := recast.CreateHeightfield(cfg.Width, cfg.Height, cfg.Bmin, cfg.Bmax, cfg.Cs, cfg.Ch)
	areas := make([]uint8, ntris)
	recast.MarkWalkableTriangles(cfg.WalkableSlopeAngle, verts, tris[:ntris*3], areas)
	if err := recast.RasterizeTriangles(rc, verts, tris[:ntris*3], areas, hf, cfg.WalkableClimb); err != nil {
		return Blob{}, stageFailed(log, ErrVoxelizationFailed, "rasterize", err)
	}
	recast.FilterHeightfield(rc, cfg.WalkableHeight, cfg.WalkableClimb, hf)
	log.Debug("voxelized", zap.Int("walkableSpans", hf.SpanCount()))
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	// Partition.
	chf, err := recast.BuildCompactHeightfield(rc, cfg.WalkableHeight, cfg.WalkableClimb, hf)
	if err != nil {
		return Blob{}, stageFailed(log, ErrRegionBuildFailed, "compact", err)
	}
	hf = nil
	recast.ErodeWalkableArea(rc, cfg.WalkableRadius, chf)
	recast.BuildDistanceField(rc, chf)
	if err := recast.BuildRegions(rc, chf, 0, cfg.MinRegionArea, cfg.MergeRegionArea); err != nil {
		return Blob{}, stageFailed(log, ErrRegionBuildFailed, "regions", err)
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	// Polygonize.
	cset, err := recast.BuildContours(rc, chf, cfg.MaxSimplificationError, cfg.MaxEdgeLen, recast.RC_CONTOUR_TESS_WALL_EDGES)
	if err != nil {
		return Blob{}, stageFailed(log, ErrPolygonBuildFailed, "contours", err)
	}
	pmesh, err := recast.BuildPolyMesh(rc, cset, cfg.MaxVertsPerPoly)
	if err != nil {
		return Blob{}, stageFailed(log, ErrPolygonBuildFailed, "polymesh", err)
	}
	dmesh, err := recast.BuildPolyMeshDetail(rc, pmesh, chf, cfg.DetailSampleDist, cfg.DetailSampleMaxError)
	if err != nil {
		return Blob{}, stageFailed(log, ErrPolygonBuildFailed, "detail", err)
	}
	for i := 0; i < pmesh.NPolys; i++ {
		if pmesh.Areas[i] == recast.RC_WALKABLE_AREA {
			pmesh.Flags[i] = FlagWalk
		}
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	// Assemble.
	data, err := detour.CreateNavMeshData(&detour.NavMeshCreateParams{
		Verts:            pmesh.Verts,
		VertCount:        pmesh.NVerts,
		Polys:            pmesh.Polys,
		PolyFlags:        pmesh.Flags,
		PolyAreas:        pmesh.Areas,
		PolyCount:        pmesh.NPolys,
		Nvp:              pmesh.Nvp,
		DetailMeshes:     dmesh.Meshes,
		DetailVerts:      dmesh.Verts,
		DetailVertsCount: dmesh.NVerts,
		DetailTris:       dmesh.Tris,
		DetailTriCount:   dmesh.NTris,
		WalkableHeight:   agent.CharacterHeight,
		WalkableRadius:   agent.CharacterRadius,
		WalkableClimb:    agent.CharacterClimb,
		Bmin:             pmesh.Bmin,
		Bmax:             pmesh.Bmax,
		Cs:               cfg.Cs,
		Ch:               cfg.Ch,
		BuildBvTree:      true,
	})
	if err != nil {
		return Blob{}, stageFailed(log, ErrAssemblyFailed, "assemble", err)
	}

	rc.StopTimer(recast.RC_TIMER_TOTAL)
	rc.LogBuildTimes()
	log.Debug("navigation built",
		zap.Int("polys", pmesh.NPolys), zap.Int("verts", pmesh.NVerts),
		zap.Int("bytes", len(data)), zap.Duration("total", rc.AccumulatedTime(recast.RC_TIMER_TOTAL)))

	return Blob{Data: data, AreaSize: areaSize(cfg.Bmin, cfg.Bmax)}, nil
}

func areaSize(bmin, bmax [3]float32) float32 {
	return mgl32.Vec3(bmax).Sub(mgl32.Vec3(bmin)).Len()
}

// LoadOrBuild returns a query engine for model, preferring the cache file next
// to model.File. A fresh build is cached only once an engine could be created
// from it.
func LoadOrBuild(ctx context.Context, model *Model, agent AgentConfig, opts BuildOptions) (*Engine, error) {
	log := logger.OrNop(opts.Logger)
	path := CachePath(model.File)

	if !opts.NoCache && model.File != "" {
		if blob, ok := LoadCache(path, agent, log); ok {
			eng, err := NewEngine(blob, agent)
			if err == nil {
				log.Debug("navigation loaded from cache", zap.String("path", path))
				return eng, nil
			}
			log.Warn("cached navigation unusable, rebuilding", zap.String("path", path), zap.Error(err))
		}
	}

	blob, err := Build(ctx, model, agent, opts)
	if err != nil {
		return nil, err
	}
	eng, err := NewEngine(blob, agent)
	if err != nil {
		log.Error("navigation query init failed", zap.Error(err))
		return nil, err
	}
	if model.File != "" {
		SaveCache(path, agent, blob, log)
	}
	return eng, nil
}
