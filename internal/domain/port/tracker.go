package port

import (
	"context"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// ExperimentTracker — протокол трекинга экспериментов и реестра моделей.
type ExperimentTracker interface {
	// EnsureExperiment возвращает ID эксперимента, создавая его при отсутствии.
	EnsureExperiment(ctx context.Context, name, artifactLocation string) (string, error)

	// StartRun открывает новый запуск и возвращает его ID.
	StartRun(ctx context.Context, experimentID, runName string) (string, error)

	// EndRun помечает запуск завершённым.
	EndRun(ctx context.Context, runID string) error

	// LogMetric пишет скалярную метрику с привязкой к шагу (эпохе).
	LogMetric(ctx context.Context, runID, key string, value float64, step int) error

	// LogParam пишет параметр запуска.
	LogParam(ctx context.Context, runID, key, value string) error

	// MetricHistory возвращает историю метрики запуска по шагам.
	MetricHistory(ctx context.Context, runID, key string) ([]entity.MetricPoint, error)

	// RegisterModel создаёт новую версию зарегистрированной модели.
	RegisterModel(ctx context.Context, runID, name, source string) (entity.ModelVersion, error)

	// LatestVersions возвращает последние версии модели по стадиям.
	LatestVersions(ctx context.Context, name string) ([]entity.ModelVersion, error)

	// TransitionStage переводит версию модели в другую стадию.
	TransitionStage(ctx context.Context, name string, version int, stage entity.Stage) (entity.ModelVersion, error)

	Close() error
}
