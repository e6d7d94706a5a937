package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/config"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
	"github.com/saugatapaul1010/Vision-OPs/internal/registry"
	"github.com/saugatapaul1010/Vision-OPs/internal/tracking"
	"github.com/saugatapaul1010/Vision-OPs/internal/viz"
)

func main() {
	projectPath := flag.String("project", ".", "путь к корню проекта с params.yaml")
	onlyIfBest := flag.Bool("only-if-test-score-is-best", false,
		"продвигать модель только если тестовый прогон признал её лучшей")
	flag.Parse()

	if err := logger.InitProduction(); err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*projectPath, *onlyIfBest); err != nil {
		logger.L().Fatal("stage update failed", zap.Error(err))
	}
}

type testScore struct {
	Best bool `json:"best"`
}

func run(projectPath string, onlyIfBest bool) error {
	cfg, err := config.Load(projectPath)
	if err != nil {
		return err
	}

	if onlyIfBest {
		best, err := readTestScore(filepath.Join(projectPath, cfg.Training.SaveModelOutputDir, "test_score.json"))
		if err != nil {
			return err
		}
		if !best {
			logger.L().Info("test score is not the best, skipping stage update")
			return nil
		}
	}

	tracker, err := tracking.New(cfg.Tracking.TrackingURI)
	if err != nil {
		return err
	}
	defer tracker.Close()

	ctx := context.Background()
	promoted, archived, err := registry.UpdateModelVersionStages(ctx, tracker, cfg.Model.RegisteredName)
	if err != nil {
		return err
	}
	logger.L().Info("stage update finished",
		zap.String("model", promoted.Name),
		zap.Int("production_version", promoted.Version),
		zap.Int("archived", len(archived)))

	// история метрик запуска, обучившего production-версию
	plotsDir := filepath.Join(projectPath, cfg.Training.SaveModelOutputDir, "production_plots")
	return saveProductionPlots(ctx, tracker, promoted.RunID, cfg.Training.MetricsToPlot, plotsDir)
}

func saveProductionPlots(ctx context.Context, tracker port.ExperimentTracker, runID string, metrics []string, dir string) error {
	if runID == "" {
		logger.L().Warn("production version has no run id, skipping plots")
		return nil
	}
	for _, metric := range metrics {
		history, err := tracker.MetricHistory(ctx, runID, metric)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			continue
		}
		path := filepath.Join(dir, metric+".png")
		if err := viz.SaveMetricHistoryChart(path, metric, history); err != nil {
			return err
		}
		logger.L().Info("production metric plot saved",
			zap.String("metric", metric),
			zap.String("path", path))
	}
	return nil
}

func readTestScore(path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read test score: %w", err)
	}
	var score testScore
	if err := json.Unmarshal(raw, &score); err != nil {
		return false, fmt.Errorf("parse test score %s: %w", path, err)
	}
	return score.Best, nil
}
