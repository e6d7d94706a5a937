package trainer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/loader"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
)

// Options — параметры цикла дообучения.
type Options struct {
	Epochs       int
	Metric       string  // метрика выбора лучшей эпохи
	InitMetric   float64 // стартовое значение лучшей метрики
	IoUThreshold float64
	Beta         float64

	SaveDir        string // куда писать веса и чекпоинт
	ModelName      string // базовое имя файлов модели
	SaveCheckpoint bool

	RegisterModel  bool
	RegisteredName string
	LogMetrics     bool
	RunID          string
}

// WeightsPath — путь файла весов лучшей модели.
func (o Options) WeightsPath() string {
	return filepath.Join(o.SaveDir, o.ModelName+".pt")
}

// CheckpointPath — путь файла чекпоинта.
func (o Options) CheckpointPath() string {
	return filepath.Join(o.SaveDir, o.ModelName+"_ckpt.json")
}

func (o Options) validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", o.Epochs)
	}
	if o.Metric == "" {
		return fmt.Errorf("metric to find best is empty")
	}
	if o.RegisterModel && o.RegisteredName == "" {
		return fmt.Errorf("registered model name is empty")
	}
	return nil
}

// FineTuner ведёт цикл дообучения: тренировка, оценка, отбор лучшей эпохи,
// сохранение весов и чекпоинта, регистрация модели и запись метрик.
type FineTuner struct {
	backend     port.TrainingBackend
	trainLoader *loader.Loader
	valLoader   *loader.Loader
	tracker     port.ExperimentTracker
	opts        Options
	onBest      func(ctx context.Context, epoch int, eval entity.EvalResult) error
	onEpoch     func(ctx context.Context, epoch int, train entity.TrainResult, eval entity.EvalResult, best float64) error
}

// NewFineTuner собирает цикл дообучения; tracker обязателен только когда
// включены LogMetrics или RegisterModel.
func NewFineTuner(backend port.TrainingBackend, trainLoader, valLoader *loader.Loader, tracker port.ExperimentTracker, opts Options) (*FineTuner, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if (opts.LogMetrics || opts.RegisterModel) && tracker == nil {
		return nil, fmt.Errorf("tracker is required when metrics logging or model registration is enabled")
	}
	return &FineTuner{
		backend:     backend,
		trainLoader: trainLoader,
		valLoader:   valLoader,
		tracker:     tracker,
		opts:        opts,
	}, nil
}

// OnBest регистрирует обработчик улучшения метрики (например, отрисовку
// предсказаний лучшей эпохи).
func (f *FineTuner) OnBest(fn func(ctx context.Context, epoch int, eval entity.EvalResult) error) {
	f.onBest = fn
}

// OnEpoch регистрирует обработчик конца каждой эпохи (например, обновление
// датчиков монитора).
func (f *FineTuner) OnEpoch(fn func(ctx context.Context, epoch int, train entity.TrainResult, eval entity.EvalResult, best float64) error) {
	f.onEpoch = fn
}

// Run выполняет Epochs эпох дообучения. Ненулевой ckpt продолжает
// обучение: нумерация эпох и лучшая метрика берутся из него.
// Возвращает лучшее достигнутое значение метрики.
func (f *FineTuner) Run(ctx context.Context, ckpt *entity.Checkpoint) (float64, error) {
	start := 1
	best := f.opts.InitMetric
	if ckpt != nil {
		if err := f.backend.LoadStateDict(ctx, ckpt.ModelState); err != nil {
			return 0, fmt.Errorf("restore model state: %w", err)
		}
		if len(ckpt.OptimizerState) > 0 {
			if err := f.backend.LoadOptimizerState(ctx, ckpt.OptimizerState); err != nil {
				return 0, fmt.Errorf("restore optimizer state: %w", err)
			}
		}
		start = ckpt.Epoch + 1
		best = ckpt.BestScore
		logger.L().Info("resuming from checkpoint",
			zap.Int("epoch", ckpt.Epoch),
			zap.Float64("best_score", ckpt.BestScore))
	}

	for epoch := start; epoch < start+f.opts.Epochs; epoch++ {
		trainRes, err := TrainOneEpoch(ctx, f.backend, f.trainLoader)
		if err != nil {
			return 0, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if err := f.backend.StepScheduler(ctx); err != nil {
			return 0, fmt.Errorf("epoch %d: step scheduler: %w", epoch, err)
		}
		evalRes, err := EvalOneEpoch(ctx, f.backend, f.valLoader, f.opts.IoUThreshold, f.opts.Beta)
		if err != nil {
			return 0, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		score, ok := evalRes.Scores[f.opts.Metric]
		if !ok {
			return 0, fmt.Errorf("metric %q is not produced by evaluation", f.opts.Metric)
		}
		logger.L().Info("epoch finished",
			zap.Int("epoch", epoch),
			zap.Float64("epoch_loss", trainRes.EpochLoss),
			zap.Float64(f.opts.Metric, score),
			zap.Float64("best", best))

		// строгое улучшение: равенство лучшему не сохраняет модель заново
		if score > best {
			best = score
			if err := f.saveBest(ctx, epoch, best, evalRes); err != nil {
				return 0, err
			}
		}

		if f.onEpoch != nil {
			if err := f.onEpoch(ctx, epoch, trainRes, evalRes, best); err != nil {
				logger.L().Warn("epoch hook failed", zap.Error(err))
			}
		}
		if f.opts.LogMetrics {
			if err := f.logEpoch(ctx, epoch, trainRes, evalRes); err != nil {
				return 0, err
			}
		}
		if err := f.backend.FreeMemory(ctx); err != nil {
			logger.L().Warn("free memory hint failed", zap.Error(err))
		}
	}
	return best, nil
}

func (f *FineTuner) saveBest(ctx context.Context, epoch int, best float64, evalRes entity.EvalResult) error {
	state, err := f.backend.StateDict(ctx)
	if err != nil {
		return fmt.Errorf("epoch %d: export model state: %w", epoch, err)
	}
	if err := os.MkdirAll(f.opts.SaveDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(f.opts.WeightsPath(), state, 0o644); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	logger.L().Info("best model saved",
		zap.Int("epoch", epoch),
		zap.String("path", f.opts.WeightsPath()))

	if f.opts.SaveCheckpoint {
		optState, err := f.backend.OptimizerState(ctx)
		if err != nil {
			return fmt.Errorf("epoch %d: export optimizer state: %w", epoch, err)
		}
		ckpt := entity.Checkpoint{
			Epoch:          epoch,
			Metric:         f.opts.Metric,
			BestScore:      best,
			ModelState:     state,
			OptimizerState: optState,
		}
		if err := SaveCheckpoint(f.opts.CheckpointPath(), ckpt); err != nil {
			return err
		}
	}

	if f.opts.RegisterModel {
		version, err := f.tracker.RegisterModel(ctx, f.opts.RunID, f.opts.RegisteredName, f.opts.WeightsPath())
		if err != nil {
			return fmt.Errorf("register model: %w", err)
		}
		logger.L().Info("model version registered",
			zap.String("name", version.Name),
			zap.Int("version", version.Version))
	}

	if f.onBest != nil {
		if err := f.onBest(ctx, epoch, evalRes); err != nil {
			logger.L().Warn("best epoch hook failed", zap.Error(err))
		}
	}
	return nil
}

func (f *FineTuner) logEpoch(ctx context.Context, epoch int, trainRes entity.TrainResult, evalRes entity.EvalResult) error {
	if err := f.tracker.LogMetric(ctx, f.opts.RunID, "epoch_loss", trainRes.EpochLoss, epoch); err != nil {
		return err
	}
	for key, v := range trainRes.Losses {
		if err := f.tracker.LogMetric(ctx, f.opts.RunID, key, v, epoch); err != nil {
			return err
		}
	}
	for key, v := range evalRes.Scores {
		if err := f.tracker.LogMetric(ctx, f.opts.RunID, key, v, epoch); err != nil {
			return err
		}
	}
	return nil
}
