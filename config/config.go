package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

// ImageDataPaths — пути к изображениям и CSV-индексам относительно корня проекта.
type ImageDataPaths struct {
	Images       string `yaml:"images"`
	TrainCSVFile string `yaml:"train_csv_file"`
	BoxesCSVFile string `yaml:"bboxes_csv_file"`
}

// DatasetConf — настройки датасета, сплита и батчей.
type DatasetConf struct {
	BoxFormat   string  `yaml:"box_format"`
	BatchSize   int     `yaml:"batch_size"`
	ValFraction float64 `yaml:"val_fraction"`
	StratifyBy  string  `yaml:"stratify_by"`
	GroupBy     string  `yaml:"group_by"`
}

// ModelConf — настройки модели и её регистрации в реестре.
type ModelConf struct {
	Name           string `yaml:"name"`
	NumberClasses  int    `yaml:"number_classes"`
	RegisteredName string `yaml:"registered_name"`
	SaveDir        string `yaml:"save_dir"`
}

// OptParams — параметры оптимизатора или расписания; незадействованные поля
// остаются нулевыми.
type OptParams struct {
	LR          float64 `yaml:"lr"`
	Momentum    float64 `yaml:"momentum"`
	WeightDecay float64 `yaml:"weight_decay"`
	StepSize    int     `yaml:"step_size"`
	Milestones  []int   `yaml:"milestones"`
	Gamma       float64 `yaml:"gamma"`
}

// NamedSection — пара имя + параметры для оптимизатора и расписания.
type NamedSection struct {
	Name       string    `yaml:"name"`
	Parameters OptParams `yaml:"parameters"`
}

// TrainingConf — гиперпараметры обучения и оценки.
type TrainingConf struct {
	DeviceCUDA             bool         `yaml:"device_cuda"`
	Backend                string       `yaml:"backend"`
	Epochs                 int          `yaml:"epochs"`
	EvaluationIoUThreshold float64      `yaml:"evaluation_iou_threshold"`
	EvaluationBeta         float64      `yaml:"evaluation_beta"`
	InitialMetricValue     float64      `yaml:"initial_metric_value"`
	MetricToFindBest       string       `yaml:"metric_to_find_best"`
	SaveBestCkpt           bool         `yaml:"save_best_ckpt"`
	Checkpoint             string       `yaml:"checkpoint"`
	LogMetrics             bool         `yaml:"log_metrics"`
	RegisterBestLogModel   bool         `yaml:"register_best_log_model"`
	SaveModelOutputDir     string       `yaml:"save_model_output_dir"`
	MetricsToPlot          []string     `yaml:"metrics_to_plot"`
	Seed                   int64        `yaml:"seed"`
	MonitorPort            int          `yaml:"monitor_port"`
	WorkerScript           string       `yaml:"worker_script"`
	WorkerPort             int          `yaml:"worker_port"`
	Optimizer              NamedSection `yaml:"optimizer"`
	LRScheduler            NamedSection `yaml:"lr_scheduler"`
}

// TrackingConf — настройки MLflow-трекинга.
type TrackingConf struct {
	TrackingURI      string `yaml:"mltracking_uri"`
	ExperimentName   string `yaml:"experiment_name"`
	RunName          string `yaml:"run_name"`
	ArtifactLocation string `yaml:"artifact_location"`
}

// HyperOptConf — путь к файлу лучших параметров, если подбор запускался.
type HyperOptConf struct {
	SaveBestParametersPath string `yaml:"save_best_parameters_path"`
}

// Config — корневой документ params.yaml.
type Config struct {
	ImageDataPaths ImageDataPaths `yaml:"image_data_paths"`
	DatasetConf    DatasetConf    `yaml:"image_dataset_conf"`
	Model          ModelConf      `yaml:"object_detection_model"`
	Training       TrainingConf   `yaml:"model_training_inference_conf"`
	HyperOpt       HyperOptConf   `yaml:"hyperparameter_optimization"`
	Tracking       TrackingConf   `yaml:"mlflow_tracking_conf"`

	ProjectPath string `yaml:"-"`
}

// Load читает params.yaml из корня проекта и .env рядом с ним.
// MLFLOW_TRACKING_URI из окружения имеет приоритет над конфигом.
func Load(projectPath string) (*Config, error) {
	// .env может отсутствовать, это не ошибка
	_ = godotenv.Load(filepath.Join(projectPath, ".env"))

	raw, err := os.ReadFile(filepath.Join(projectPath, "params.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read params.yaml: %w", err)
	}

	cfg := &Config{ProjectPath: projectPath}
	cfg.applyDefaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse params.yaml: %w", err)
	}

	if uri := os.Getenv("MLFLOW_TRACKING_URI"); uri != "" {
		cfg.Tracking.TrackingURI = uri
	}

	// Лучшие параметры обучения перекрывают конфиг, если файл с ними есть
	if p := cfg.HyperOpt.SaveBestParametersPath; p != "" {
		if err := cfg.applyBestParams(filepath.Join(projectPath, p)); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.DatasetConf.ValFraction = 0.25
	c.DatasetConf.StratifyBy = "Number_HSparrows"
	c.DatasetConf.GroupBy = "Author"
	c.Training.Backend = "torch"
	c.Training.WorkerScript = "scripts/torch_worker.py"
	c.Training.WorkerPort = 8008
	c.Training.MonitorPort = 9090
}

type bestParams struct {
	Optimizer   NamedSection `yaml:"optimizer"`
	LRScheduler NamedSection `yaml:"lr_scheduler"`
}

func (c *Config) applyBestParams(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read best params: %w", err)
	}
	var best bestParams
	if err := yaml.Unmarshal(raw, &best); err != nil {
		return fmt.Errorf("parse best params: %w", err)
	}
	if best.Optimizer.Name != "" {
		c.Training.Optimizer = best.Optimizer
	}
	if best.LRScheduler.Name != "" {
		c.Training.LRScheduler = best.LRScheduler
	}
	return nil
}

// Validate проверяет обязательные ключи; ошибка здесь фатальна на старте.
func (c *Config) Validate() error {
	if c.ImageDataPaths.Images == "" {
		return fmt.Errorf("image_data_paths.images is required")
	}
	if c.ImageDataPaths.TrainCSVFile == "" {
		return fmt.Errorf("image_data_paths.train_csv_file is required")
	}
	if c.ImageDataPaths.BoxesCSVFile == "" {
		return fmt.Errorf("image_data_paths.bboxes_csv_file is required")
	}
	if c.DatasetConf.BatchSize <= 0 {
		return fmt.Errorf("image_dataset_conf.batch_size must be positive")
	}
	if _, err := entity.ParseBoxFormat(c.DatasetConf.BoxFormat); err != nil {
		return err
	}
	if c.Model.NumberClasses < 2 {
		return fmt.Errorf("object_detection_model.number_classes must be >= 2")
	}
	if c.Model.RegisteredName == "" {
		return fmt.Errorf("object_detection_model.registered_name is required")
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("model_training_inference_conf.epochs must be positive")
	}
	if _, err := c.OptimizerConfig(); err != nil {
		return err
	}
	if _, err := c.SchedulerConfig(); err != nil {
		return err
	}
	return nil
}

// Device возвращает имя вычислительного устройства для бэкенда.
func (c *Config) Device() string {
	if c.Training.DeviceCUDA {
		return "cuda"
	}
	return "cpu"
}

// OptimizerConfig переводит секцию конфига в закрытый вариант оптимизатора.
func (c *Config) OptimizerConfig() (port.OptimizerConfig, error) {
	kind, err := port.ParseOptimizerKind(c.Training.Optimizer.Name)
	if err != nil {
		return port.OptimizerConfig{}, err
	}
	p := c.Training.Optimizer.Parameters
	return port.OptimizerConfig{
		Kind:         kind,
		LearningRate: p.LR,
		Momentum:     p.Momentum,
		WeightDecay:  p.WeightDecay,
	}, nil
}

// SchedulerConfig переводит секцию конфига в закрытый вариант расписания.
func (c *Config) SchedulerConfig() (port.SchedulerConfig, error) {
	kind, err := port.ParseSchedulerKind(c.Training.LRScheduler.Name)
	if err != nil {
		return port.SchedulerConfig{}, err
	}
	p := c.Training.LRScheduler.Parameters
	return port.SchedulerConfig{
		Kind:       kind,
		StepSize:   p.StepSize,
		Milestones: p.Milestones,
		Gamma:      p.Gamma,
	}, nil
}

// BoxFormat возвращает разобранный формат рамок входного индекса.
func (c *Config) BoxFormat() entity.BoxFormat {
	f, _ := entity.ParseBoxFormat(c.DatasetConf.BoxFormat)
	return f
}
