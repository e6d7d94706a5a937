package tracking

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

// Memory — трекер в памяти для тестов и локальных прогонов без сервера.
type Memory struct {
	mu          sync.RWMutex
	experiments map[string]string // name -> id
	runs        map[string]bool
	metrics     map[string]map[string][]entity.MetricPoint // runID -> key -> points
	params      map[string]map[string]string
	versions    map[string][]entity.ModelVersion // model name -> versions
}

// NewMemory создаёт пустой трекер.
func NewMemory() *Memory {
	return &Memory{
		experiments: make(map[string]string),
		runs:        make(map[string]bool),
		metrics:     make(map[string]map[string][]entity.MetricPoint),
		params:      make(map[string]map[string]string),
		versions:    make(map[string][]entity.ModelVersion),
	}
}

var _ port.ExperimentTracker = (*Memory)(nil)

func (m *Memory) EnsureExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.experiments[name]; ok {
		return id, nil
	}
	id := uuid.NewString()
	m.experiments[name] = id
	return id, nil
}

func (m *Memory) StartRun(ctx context.Context, experimentID, runName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.runs[id] = true
	return id, nil
}

func (m *Memory) EndRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = false
	return nil
}

func (m *Memory) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics[runID] == nil {
		m.metrics[runID] = make(map[string][]entity.MetricPoint)
	}
	m.metrics[runID][key] = append(m.metrics[runID][key], entity.MetricPoint{Step: step, Value: value})
	return nil
}

func (m *Memory) LogParam(ctx context.Context, runID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.params[runID] == nil {
		m.params[runID] = make(map[string]string)
	}
	m.params[runID][key] = value
	return nil
}

func (m *Memory) MetricHistory(ctx context.Context, runID, key string) ([]entity.MetricPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	points := m.metrics[runID][key]
	out := make([]entity.MetricPoint, len(points))
	copy(out, points)
	return out, nil
}

func (m *Memory) RegisterModel(ctx context.Context, runID, name, source string) (entity.ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	version := entity.ModelVersion{
		Name:    name,
		Version: len(m.versions[name]) + 1,
		Stage:   entity.StageNone,
		RunID:   runID,
		Source:  source,
	}
	m.versions[name] = append(m.versions[name], version)
	return version, nil
}

func (m *Memory) LatestVersions(ctx context.Context, name string) ([]entity.ModelVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.versions[name]
	if len(versions) == 0 {
		return nil, fmt.Errorf("registered model %q not found", name)
	}
	// последняя версия каждой стадии
	latest := map[entity.Stage]entity.ModelVersion{}
	for _, v := range versions {
		if cur, ok := latest[v.Stage]; !ok || v.Version > cur.Version {
			latest[v.Stage] = v
		}
	}
	out := make([]entity.ModelVersion, 0, len(latest))
	for _, v := range latest {
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) TransitionStage(ctx context.Context, name string, version int, stage entity.Stage) (entity.ModelVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.versions[name] {
		if v.Version == version {
			m.versions[name][i].Stage = stage
			return m.versions[name][i], nil
		}
	}
	return entity.ModelVersion{}, fmt.Errorf("model %q version %d not found", name, version)
}

func (m *Memory) Close() error { return nil }
