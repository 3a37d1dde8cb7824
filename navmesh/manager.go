package navmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gorustyt/navbake/common/logger"
)

var ErrUnknownEntity = errors.New("navmesh: unknown entity")

type entity struct {
	model   *Model
	agent   AgentConfig
	pending bool
	engine  atomic.Pointer[Engine]
}

type buildFunc func(ctx context.Context, model *Model, agent AgentConfig, opts BuildOptions) (*Engine, error)

// Manager keeps one navigation engine per registered entity and rebuilds them
// in batches.
type Manager struct {
	opts  BuildOptions
	log   *zap.Logger
	build buildFunc

	mu       sync.Mutex
	entities map[string]*entity
	// ids with a build in flight, kept across Remove so a re-registered id
	// waits for the running build to finish.
	building map[string]bool
}

func NewManager(opts BuildOptions) *Manager {
	opts.Logger = logger.OrNop(opts.Logger)
	return &Manager{
		opts:     opts,
		log:      opts.Logger.Named("navmesh.manager"),
		build:    LoadOrBuild,
		entities: make(map[string]*entity),
		building: make(map[string]bool),
	}
}

// Register adds or replaces an entity and marks it for building. A replaced
// entity keeps serving its old engine until the next BuildPending.
func (m *Manager) Register(id string, model *Model, agent AgentConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[id]; ok {
		e.model, e.agent, e.pending = model, agent, true
		return
	}
	m.entities[id] = &entity{model: model, agent: agent, pending: true}
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.entities, id)
	m.mu.Unlock()
}

// RequestRebuild marks id for building on the next BuildPending.
func (m *Manager) RequestRebuild(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntity, id)
	}
	e.pending = true
	return nil
}

type buildJob struct {
	id    string
	ent   *entity
	model *Model
	agent AgentConfig
	eng   *Engine
	err   error
}

// BuildPending builds every pending entity concurrently. Engines are
// published only after all builds have finished. An entity whose build fails
// loses its engine. The returned error combines every failure. Ids still being
// built by another call are skipped, and results for entities removed in the
// meantime are discarded.
func (m *Manager) BuildPending(ctx context.Context) error {
	m.mu.Lock()
	var jobs []*buildJob
	for id, e := range m.entities {
		if !e.pending || m.building[id] {
			continue
		}
		e.pending = false
		m.building[id] = true
		jobs = append(jobs, &buildJob{id: id, ent: e, model: e.model, agent: e.agent})
	}
	m.mu.Unlock()
	if len(jobs) == 0 {
		return nil
	}
	m.log.Debug("building navigation", zap.Int("entities", len(jobs)))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job *buildJob) {
			defer wg.Done()
			opts := m.opts
			opts.Logger = m.opts.Logger.With(zap.String("entity", job.id))
			job.eng, job.err = m.build(ctx, job.model, job.agent, opts)
		}(job)
	}
	wg.Wait()

	var errs error
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range jobs {
		delete(m.building, job.id)
		if m.entities[job.id] != job.ent {
			m.log.Debug("dropping build of removed entity", zap.String("entity", job.id))
			continue
		}
		job.ent.engine.Store(job.eng)
		if job.err != nil {
			m.log.Error("navigation build failed", zap.String("entity", job.id), zap.Error(job.err))
			errs = multierr.Append(errs, fmt.Errorf("entity %q: %w", job.id, job.err))
		}
	}
	return errs
}

// Engine returns the published engine of id, or nil.
func (m *Manager) Engine(id string) *Engine {
	m.mu.Lock()
	e, ok := m.entities[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return e.engine.Load()
}

// FindPath queries the engine of id. Entities without an engine yield no path.
func (m *Manager) FindPath(id string, start, end mgl32.Vec3, modelToWorld mgl32.Mat4) Path {
	eng := m.Engine(id)
	if eng == nil {
		return nil
	}
	return eng.FindPath(start, end, modelToWorld)
}
