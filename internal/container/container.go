package container

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/config"
	"github.com/saugatapaul1010/Vision-OPs/internal/backend"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
	"github.com/saugatapaul1010/Vision-OPs/internal/monitor"
	"github.com/saugatapaul1010/Vision-OPs/internal/tracking"
)

// Container связывает инфраструктурные зависимости пайплайна.
type Container struct {
	Backend port.TrainingBackend
	Tracker port.ExperimentTracker
	Monitor *monitor.Monitor
}

// New собирает зависимости по конфигу: бэкенд обучения по имени,
// трекер по схеме URI, монитор процесса.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	b, err := backend.New(ctx, backend.Options{
		Kind:         cfg.Training.Backend,
		WorkerScript: filepath.Join(cfg.ProjectPath, cfg.Training.WorkerScript),
		WorkerPort:   cfg.Training.WorkerPort,
		ModelPath:    filepath.Join(cfg.ProjectPath, cfg.Model.SaveDir, cfg.Model.Name+".onnx"),
		ScoreMin:     0.05,
	})
	if err != nil {
		return nil, fmt.Errorf("create training backend: %w", err)
	}

	tracker, err := tracking.New(cfg.Tracking.TrackingURI)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("create experiment tracker: %w", err)
	}

	mon, err := monitor.New()
	if err != nil {
		b.Close()
		tracker.Close()
		return nil, err
	}

	return &Container{Backend: b, Tracker: tracker, Monitor: mon}, nil
}

// Close освобождает все зависимости контейнера.
func (c *Container) Close() {
	if err := c.Backend.Close(); err != nil {
		logger.L().Warn("backend close failed", zap.Error(err))
	}
	if err := c.Tracker.Close(); err != nil {
		logger.L().Warn("tracker close failed", zap.Error(err))
	}
}
