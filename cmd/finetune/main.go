package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/config"
	"github.com/saugatapaul1010/Vision-OPs/internal/augment"
	"github.com/saugatapaul1010/Vision-OPs/internal/container"
	"github.com/saugatapaul1010/Vision-OPs/internal/dataset"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/loader"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
	"github.com/saugatapaul1010/Vision-OPs/internal/trainer"
	"github.com/saugatapaul1010/Vision-OPs/internal/viz"
)

func main() {
	projectPath := flag.String("project", ".", "путь к корню проекта с params.yaml")
	dev := flag.Bool("dev", false, "консольный лог вместо production")
	flag.Parse()

	if *dev {
		if err := logger.InitDevelopment(); err != nil {
			os.Exit(1)
		}
	} else {
		if err := logger.InitProduction(); err != nil {
			os.Exit(1)
		}
	}
	defer logger.Sync()

	if err := run(*projectPath); err != nil {
		logger.L().Fatal("fine-tuning failed", zap.Error(err))
	}
}

func run(projectPath string) error {
	cfg, err := config.Load(projectPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// единственный источник случайности пайплайна
	rng := rand.New(rand.NewSource(cfg.Training.Seed))

	idx, err := dataset.LoadIndex(
		filepath.Join(projectPath, cfg.ImageDataPaths.TrainCSVFile),
		filepath.Join(projectPath, cfg.ImageDataPaths.BoxesCSVFile),
		cfg.BoxFormat())
	if err != nil {
		return err
	}
	logger.L().Info("index loaded", zap.Int("images", idx.Len()))

	trainRows, valRows, err := dataset.StratifiedGroupSplit(
		idx.Images, cfg.DatasetConf.StratifyBy, cfg.DatasetConf.GroupBy,
		cfg.DatasetConf.ValFraction, rng)
	if err != nil {
		return err
	}
	logger.L().Info("dataset split",
		zap.Int("train", len(trainRows)),
		zap.Int("val", len(valRows)))

	imagesDir := filepath.Join(projectPath, cfg.ImageDataPaths.Images)
	trainDS := dataset.NewImageBoxDataset(imagesDir, idx, trainRows, augment.TrainPipeline(), rng)
	valDS := dataset.NewImageBoxDataset(imagesDir, idx, valRows, nil, nil)

	trainLoader, err := loader.New(trainDS, cfg.DatasetConf.BatchSize, true, rng)
	if err != nil {
		return err
	}
	valLoader, err := loader.New(valDS, cfg.DatasetConf.BatchSize, false, nil)
	if err != nil {
		return err
	}

	c, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	go c.Monitor.Run(ctx, cfg.Training.MonitorPort)

	optConf, err := cfg.OptimizerConfig()
	if err != nil {
		return err
	}
	schedConf, err := cfg.SchedulerConfig()
	if err != nil {
		return err
	}
	setup := port.BackendSetup{
		NumClasses: cfg.Model.NumberClasses,
		Device:     cfg.Device(),
		Optimizer:  optConf,
		Scheduler:  schedConf,
	}
	if err := c.Backend.Setup(ctx, setup); err != nil {
		return err
	}

	experimentID, err := c.Tracker.EnsureExperiment(ctx, cfg.Tracking.ExperimentName, cfg.Tracking.ArtifactLocation)
	if err != nil {
		return err
	}
	runID, err := c.Tracker.StartRun(ctx, experimentID, cfg.Tracking.RunName)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Tracker.EndRun(ctx, runID); err != nil {
			logger.L().Warn("end run failed", zap.Error(err))
		}
	}()

	if err := logRunParams(ctx, c, cfg, runID, setup); err != nil {
		return err
	}

	var ckpt *entity.Checkpoint
	if cfg.Training.Checkpoint != "" {
		ckpt, err = trainer.LoadCheckpoint(filepath.Join(projectPath, cfg.Training.Checkpoint))
		if err != nil {
			return err
		}
	}

	opts := trainer.Options{
		Epochs:         cfg.Training.Epochs,
		Metric:         cfg.Training.MetricToFindBest,
		InitMetric:     cfg.Training.InitialMetricValue,
		IoUThreshold:   cfg.Training.EvaluationIoUThreshold,
		Beta:           cfg.Training.EvaluationBeta,
		SaveDir:        filepath.Join(projectPath, cfg.Model.SaveDir),
		ModelName:      cfg.Model.Name,
		SaveCheckpoint: cfg.Training.SaveBestCkpt,
		RegisterModel:  cfg.Training.RegisterBestLogModel,
		RegisteredName: cfg.Model.RegisteredName,
		LogMetrics:     cfg.Training.LogMetrics,
		RunID:          runID,
	}
	tuner, err := trainer.NewFineTuner(c.Backend, trainLoader, valLoader, c.Tracker, opts)
	if err != nil {
		return err
	}

	outputDir := filepath.Join(projectPath, cfg.Training.SaveModelOutputDir)
	tuner.OnEpoch(func(ctx context.Context, epoch int, train entity.TrainResult, eval entity.EvalResult, best float64) error {
		c.Monitor.SetEpoch(epoch)
		c.Monitor.SetEpochLoss(train.EpochLoss)
		c.Monitor.SetBestScore(best)
		return nil
	})
	tuner.OnBest(func(ctx context.Context, epoch int, eval entity.EvalResult) error {
		if len(eval.Results) == 0 || valDS.Len() == 0 {
			return nil
		}
		img, _, err := valDS.Get(0)
		if err != nil {
			return err
		}
		path := filepath.Join(outputDir, "val_prediction_epoch_"+strconv.Itoa(epoch)+".png")
		return viz.SavePredictions(path, img, eval.Results[0])
	})

	best, err := tuner.Run(ctx, ckpt)
	if err != nil {
		return err
	}
	logger.L().Info("fine-tuning finished", zap.Float64("best_score", best))

	return savePlots(ctx, c, cfg, runID, outputDir)
}

func logRunParams(ctx context.Context, c *container.Container, cfg *config.Config, runID string, setup port.BackendSetup) error {
	params := map[string]string{
		"seed":        strconv.FormatInt(cfg.Training.Seed, 10),
		"batch_size":  strconv.Itoa(cfg.DatasetConf.BatchSize),
		"num_classes": strconv.Itoa(setup.NumClasses),
		"device":      setup.Device,
		"epochs":      strconv.Itoa(cfg.Training.Epochs),
		"optimizer":   string(setup.Optimizer.Kind),
		"lr":          strconv.FormatFloat(setup.Optimizer.LearningRate, 'g', -1, 64),
		"box_format":  string(cfg.BoxFormat()),
	}
	for key, value := range params {
		if err := c.Tracker.LogParam(ctx, runID, key, value); err != nil {
			return err
		}
	}
	return nil
}

func savePlots(ctx context.Context, c *container.Container, cfg *config.Config, runID, outputDir string) error {
	for _, metric := range cfg.Training.MetricsToPlot {
		history, err := c.Tracker.MetricHistory(ctx, runID, metric)
		if err != nil {
			return err
		}
		if len(history) == 0 {
			continue
		}
		path := filepath.Join(outputDir, "plots", metric+".png")
		if err := viz.SaveMetricHistoryChart(path, metric, history); err != nil {
			return err
		}
		logger.L().Info("metric plot saved", zap.String("metric", metric), zap.String("path", path))
	}
	return nil
}
