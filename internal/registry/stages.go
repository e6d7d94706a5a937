package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
)

// UpdateModelVersionStages продвигает самую свежую версию модели в Production
// и архивирует прежние production-версии. Повторный вызов ничего не меняет.
func UpdateModelVersionStages(ctx context.Context, tracker port.ExperimentTracker, name string) (entity.ModelVersion, []entity.ModelVersion, error) {
	versions, err := tracker.LatestVersions(ctx, name)
	if err != nil {
		return entity.ModelVersion{}, nil, fmt.Errorf("latest versions of %q: %w", name, err)
	}
	if len(versions) == 0 {
		return entity.ModelVersion{}, nil, fmt.Errorf("registered model %q has no versions", name)
	}

	newest := versions[0]
	for _, v := range versions[1:] {
		if v.Version > newest.Version {
			newest = v
		}
	}

	promoted := newest
	if newest.Stage != entity.StageProduction {
		promoted, err = tracker.TransitionStage(ctx, name, newest.Version, entity.StageProduction)
		if err != nil {
			return entity.ModelVersion{}, nil, fmt.Errorf("promote %s v%d: %w", name, newest.Version, err)
		}
		logger.L().Info("model version promoted",
			zap.String("name", name),
			zap.Int("version", promoted.Version))
	}

	var archived []entity.ModelVersion
	for _, v := range versions {
		if v.Version == newest.Version || v.Stage != entity.StageProduction {
			continue
		}
		moved, err := tracker.TransitionStage(ctx, name, v.Version, entity.StageArchived)
		if err != nil {
			return entity.ModelVersion{}, nil, fmt.Errorf("archive %s v%d: %w", name, v.Version, err)
		}
		logger.L().Info("model version archived",
			zap.String("name", name),
			zap.Int("version", moved.Version))
		archived = append(archived, moved)
	}
	return promoted, archived, nil
}
