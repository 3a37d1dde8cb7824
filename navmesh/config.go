package navmesh

import (
	"fmt"
	"math"

	"github.com/gorustyt/navbake/common/rw"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/recast"
)

// FingerprintSize is the byte size of an AgentConfig image.
const FingerprintSize = 60

// AgentConfig holds the human facing build and query parameters. Every field
// is fixed size so the config has a stable byte image, which keys the cache.
type AgentConfig struct {
	CellSize               float32 `json:"cellSize"`
	CellHeight             float32 `json:"cellHeight"`
	WalkableSlope          float32 `json:"walkableSlope"` // radians
	CharacterHeight        float32 `json:"characterHeight"`
	CharacterRadius        float32 `json:"characterRadius"`
	CharacterClimb         float32 `json:"characterClimb"`
	MaxEdgeLength          float32 `json:"maxEdgeLength"`
	MaxSimplificationError float32 `json:"maxSimplificationError"`
	MinRegionArea          float32 `json:"minRegionArea"`   // side length in cells
	MergeRegionArea        float32 `json:"mergeRegionArea"` // side length in cells
	VertsPerPoly           int32   `json:"vertsPerPoly"`
	DetailSampleDist       float32 `json:"detailSampleDist"`
	DetailSampleMaxError   float32 `json:"detailSampleMaxError"`
	QueryMaxSearchNodes    int32   `json:"queryMaxSearchNodes"`
	ConcernedMeshIndex     int32   `json:"concernedMeshIndex"`
}

// DefaultAgentConfig returns the Recast demo settings for a human sized agent.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		CellSize:               0.3,
		CellHeight:             0.2,
		WalkableSlope:          45 * math.Pi / 180,
		CharacterHeight:        2.0,
		CharacterRadius:        0.6,
		CharacterClimb:         0.9,
		MaxEdgeLength:          12,
		MaxSimplificationError: 1.3,
		MinRegionArea:          8,
		MergeRegionArea:        20,
		VertsPerPoly:           6,
		DetailSampleDist:       1.8,
		DetailSampleMaxError:   0.2,
		QueryMaxSearchNodes:    2048,
	}
}

// Fingerprint returns the little-endian byte image of the config in field order.
func (c AgentConfig) Fingerprint() []byte {
	w := rw.NewNavMeshDataBinWriter()
	w.WriteFloat32(c.CellSize)
	w.WriteFloat32(c.CellHeight)
	w.WriteFloat32(c.WalkableSlope)
	w.WriteFloat32(c.CharacterHeight)
	w.WriteFloat32(c.CharacterRadius)
	w.WriteFloat32(c.CharacterClimb)
	w.WriteFloat32(c.MaxEdgeLength)
	w.WriteFloat32(c.MaxSimplificationError)
	w.WriteFloat32(c.MinRegionArea)
	w.WriteFloat32(c.MergeRegionArea)
	w.WriteInt32(c.VertsPerPoly)
	w.WriteFloat32(c.DetailSampleDist)
	w.WriteFloat32(c.DetailSampleMaxError)
	w.WriteInt32(c.QueryMaxSearchNodes)
	w.WriteInt32(c.ConcernedMeshIndex)
	return w.GetWriteBytes()
}

// AgentConfigFromFingerprint decodes a config image written by Fingerprint.
func AgentConfigFromFingerprint(b []byte) (AgentConfig, error) {
	var c AgentConfig
	if len(b) < FingerprintSize {
		return c, fmt.Errorf("%w: fingerprint is %d bytes", rw.ErrShortBuffer, len(b))
	}
	r := rw.NewNavMeshDataBinReader(b[:FingerprintSize])
	c.CellSize = r.ReadFloat32()
	c.CellHeight = r.ReadFloat32()
	c.WalkableSlope = r.ReadFloat32()
	c.CharacterHeight = r.ReadFloat32()
	c.CharacterRadius = r.ReadFloat32()
	c.CharacterClimb = r.ReadFloat32()
	c.MaxEdgeLength = r.ReadFloat32()
	c.MaxSimplificationError = r.ReadFloat32()
	c.MinRegionArea = r.ReadFloat32()
	c.MergeRegionArea = r.ReadFloat32()
	c.VertsPerPoly = r.ReadInt32()
	c.DetailSampleDist = r.ReadFloat32()
	c.DetailSampleMaxError = r.ReadFloat32()
	c.QueryMaxSearchNodes = r.ReadInt32()
	c.ConcernedMeshIndex = r.ReadInt32()
	return c, r.Err()
}

// QueryExtent is the half size of the box searched for the polygon nearest
// to a path endpoint.
func (c AgentConfig) QueryExtent() float32 {
	return max(2*c.CharacterRadius, c.CharacterHeight)
}

func invalid(field string, value any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalidConfig, field, value)
}

// DeriveConfig converts agent parameters and mesh vertices into the voxel
// space build configuration.
func DeriveConfig(agent AgentConfig, verts []float32) (recast.RcConfig, error) {
	var cfg recast.RcConfig

	cfg.Cs = agent.CellSize
	if !(cfg.Cs > 0) {
		return cfg, invalid("cellSize", agent.CellSize)
	}
	cfg.Ch = agent.CellHeight
	if !(cfg.Ch > 0) {
		return cfg, invalid("cellHeight", agent.CellHeight)
	}
	cfg.WalkableSlopeAngle = float32(float64(agent.WalkableSlope) * 180 / math.Pi)
	if !(cfg.WalkableSlopeAngle > 0 && cfg.WalkableSlopeAngle <= 90) {
		return cfg, invalid("walkableSlope", agent.WalkableSlope)
	}
	cfg.WalkableHeight = int(math.Ceil(float64(agent.CharacterHeight / agent.CellHeight)))
	if cfg.WalkableHeight < 3 {
		return cfg, invalid("characterHeight", agent.CharacterHeight)
	}
	cfg.WalkableClimb = int(math.Floor(float64(agent.CharacterClimb / agent.CellHeight)))
	if cfg.WalkableClimb < 0 {
		return cfg, invalid("characterClimb", agent.CharacterClimb)
	}
	cfg.WalkableRadius = int(math.Ceil(float64(agent.CharacterRadius / agent.CellSize)))
	if cfg.WalkableRadius < 0 {
		return cfg, invalid("characterRadius", agent.CharacterRadius)
	}
	cfg.MaxEdgeLen = int(agent.MaxEdgeLength / agent.CellSize)
	if cfg.MaxEdgeLen < 0 {
		return cfg, invalid("maxEdgeLength", agent.MaxEdgeLength)
	}
	cfg.MaxSimplificationError = agent.MaxSimplificationError
	if !(cfg.MaxSimplificationError >= 0) {
		return cfg, invalid("maxSimplificationError", agent.MaxSimplificationError)
	}
	if !(agent.MinRegionArea >= 0) {
		return cfg, invalid("minRegionArea", agent.MinRegionArea)
	}
	cfg.MinRegionArea = int(agent.MinRegionArea * agent.MinRegionArea)
	if !(agent.MergeRegionArea >= 0) {
		return cfg, invalid("mergeRegionArea", agent.MergeRegionArea)
	}
	cfg.MergeRegionArea = int(agent.MergeRegionArea * agent.MergeRegionArea)
	cfg.MaxVertsPerPoly = int(agent.VertsPerPoly)
	if cfg.MaxVertsPerPoly < 3 || cfg.MaxVertsPerPoly > detour.DT_VERTS_PER_POLYGON {
		return cfg, invalid("vertsPerPoly", agent.VertsPerPoly)
	}
	cfg.DetailSampleDist = agent.DetailSampleDist
	if !(cfg.DetailSampleDist == 0 || cfg.DetailSampleDist >= 0.9) {
		return cfg, invalid("detailSampleDist", agent.DetailSampleDist)
	}
	cfg.DetailSampleMaxError = agent.DetailSampleMaxError
	if !(cfg.DetailSampleMaxError >= 0) {
		return cfg, invalid("detailSampleMaxError", agent.DetailSampleMaxError)
	}
	if agent.QueryMaxSearchNodes <= 0 || agent.QueryMaxSearchNodes > math.MaxUint16 {
		return cfg, invalid("queryMaxSearchNodes", agent.QueryMaxSearchNodes)
	}

	nverts := len(verts) / 3
	if nverts == 0 {
		return cfg, fmt.Errorf("%w: no vertices", ErrEmptyGrid)
	}
	cfg.Bmin, cfg.Bmax = recast.CalcBounds(verts, nverts)
	cfg.Width, cfg.Height = recast.CalcGridSize(cfg.Bmin, cfg.Bmax, cfg.Cs)
	if cfg.Width == 0 || cfg.Height == 0 {
		return cfg, fmt.Errorf("%w: %dx%d cells", ErrEmptyGrid, cfg.Width, cfg.Height)
	}
	return cfg, nil
}
