package navmesh

import (
	"bytes"
	"os"

	"go.uber.org/zap"

	"github.com/gorustyt/navbake/common/logger"
	"github.com/gorustyt/navbake/common/rw"
	"github.com/gorustyt/navbake/detour"
)

const cacheHeaderSize = FingerprintSize + 4

// CachePath is where the baked navigation of a geometry file is stored.
func CachePath(file string) string { return file + ".nav" }

// LoadCache returns the blob stored at path when it was built with exactly
// agent. Any problem with the file is a miss.
func LoadCache(path string, agent AgentConfig, log *zap.Logger) (Blob, bool) {
	log = logger.OrNop(log).With(zap.String("path", path))
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Debug("navigation cache miss", zap.Error(err))
		return Blob{}, false
	}
	if len(raw) < cacheHeaderSize {
		log.Debug("navigation cache truncated", zap.Int("bytes", len(raw)))
		return Blob{}, false
	}
	if !bytes.Equal(raw[:FingerprintSize], agent.Fingerprint()) {
		log.Debug("navigation cache built with another agent config")
		return Blob{}, false
	}
	r := rw.NewNavMeshDataBinReader(raw[FingerprintSize:cacheHeaderSize])
	n := int(r.ReadInt32())
	if n <= 0 || n > len(raw)-cacheHeaderSize {
		log.Debug("navigation cache length mismatch", zap.Int("length", n))
		return Blob{}, false
	}
	data := raw[cacheHeaderSize : cacheHeaderSize+n]

	var tile detour.NavMeshData
	if err := tile.FromBin(data); err != nil {
		log.Debug("navigation cache holds a bad tile", zap.Error(err))
		return Blob{}, false
	}
	return Blob{Data: data, AreaSize: areaSize(tile.Header.Bmin, tile.Header.Bmax)}, true
}

// SaveCache writes blob to path keyed by agent. Failures are logged and
// otherwise ignored.
func SaveCache(path string, agent AgentConfig, blob Blob, log *zap.Logger) {
	log = logger.OrNop(log)
	w := rw.NewNavMeshDataBinWriter()
	w.WriteBytes(agent.Fingerprint())
	w.WriteInt32(int32(len(blob.Data)))
	w.WriteBytes(blob.Data)
	if err := os.WriteFile(path, w.GetWriteBytes(), 0o644); err != nil {
		log.Warn("navigation cache not saved", zap.String("path", path), zap.Error(err))
		return
	}
	log.Debug("navigation cache saved", zap.String("path", path), zap.Int("bytes", w.Size()))
}

// ReadCacheHeader returns the agent config a cache file was built with along
// with its tile. It is meant for inspection, not for loading.
func ReadCacheHeader(path string) (AgentConfig, *detour.NavMeshData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AgentConfig{}, nil, err
	}
	agent, err := AgentConfigFromFingerprint(raw)
	if err != nil {
		return AgentConfig{}, nil, err
	}
	r := rw.NewNavMeshDataBinReader(raw[FingerprintSize:])
	n := int(r.ReadInt32())
	if err := r.Err(); err != nil {
		return agent, nil, err
	}
	if n <= 0 || n > len(raw)-cacheHeaderSize {
		return agent, nil, rw.ErrShortBuffer
	}
	var tile detour.NavMeshData
	if err := tile.FromBin(raw[cacheHeaderSize : cacheHeaderSize+n]); err != nil {
		return agent, nil, err
	}
	return agent, &tile, nil
}
