package port

import (
	"context"
	"fmt"
	"image"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

// OptimizerKind — закрытый набор поддерживаемых оптимизаторов.
type OptimizerKind string

const (
	OptimizerSGD   OptimizerKind = "SGD"
	OptimizerAdam  OptimizerKind = "Adam"
	OptimizerAdamW OptimizerKind = "AdamW"
)

// ParseOptimizerKind возвращает вид оптимизатора, отклоняя незнакомые имена.
func ParseOptimizerKind(s string) (OptimizerKind, error) {
	switch OptimizerKind(s) {
	case OptimizerSGD, OptimizerAdam, OptimizerAdamW:
		return OptimizerKind(s), nil
	}
	return "", fmt.Errorf("unknown optimizer %q", s)
}

// SchedulerKind — закрытый набор расписаний learning rate.
type SchedulerKind string

const (
	SchedulerNone        SchedulerKind = ""
	SchedulerStepLR      SchedulerKind = "StepLR"
	SchedulerMultiStepLR SchedulerKind = "MultiStepLR"
)

// ParseSchedulerKind возвращает вид расписания, отклоняя незнакомые имена.
func ParseSchedulerKind(s string) (SchedulerKind, error) {
	switch SchedulerKind(s) {
	case SchedulerNone, SchedulerStepLR, SchedulerMultiStepLR:
		return SchedulerKind(s), nil
	}
	return "", fmt.Errorf("unknown lr scheduler %q", s)
}

// OptimizerConfig — параметры оптимизатора, передаваемые бэкенду.
type OptimizerConfig struct {
	Kind         OptimizerKind `json:"kind"`
	LearningRate float64       `json:"lr"`
	Momentum     float64       `json:"momentum,omitempty"`
	WeightDecay  float64       `json:"weight_decay,omitempty"`
}

// SchedulerConfig — параметры расписания learning rate.
type SchedulerConfig struct {
	Kind       SchedulerKind `json:"kind"`
	StepSize   int           `json:"step_size,omitempty"`
	Milestones []int         `json:"milestones,omitempty"`
	Gamma      float64       `json:"gamma,omitempty"`
}

// BackendSetup — всё, что нужно бэкенду для загрузки предобученного
// детектора и замены классификационной головы.
type BackendSetup struct {
	NumClasses int // классы + фон, минимум 2
	Device     string
	Optimizer  OptimizerConfig
	Scheduler  SchedulerConfig
}

// Validate проверяет параметры до обращения к бэкенду.
func (s BackendSetup) Validate() error {
	if s.NumClasses < 2 {
		return fmt.Errorf("num_classes must be >= 2 (foreground + background), got %d", s.NumClasses)
	}
	return nil
}

// TrainingBackend — контракт тренируемого детектора. Сам детектор,
// автоград и оптимизатор живут снаружи и используются как чёрный ящик.
type TrainingBackend interface {
	// Setup загружает предобученную модель и заменяет голову под NumClasses.
	Setup(ctx context.Context, setup BackendSetup) error

	// TrainStep делает forward+backward+step на одном батче и возвращает
	// именованные компоненты лосса. Градиенты сбрасываются внутри.
	TrainStep(ctx context.Context, images []image.Image, targets []entity.Target) (map[string]float64, error)

	// Predict выполняет инференс без градиентов.
	Predict(ctx context.Context, images []image.Image) ([]entity.Prediction, error)

	// StepScheduler продвигает расписание learning rate на одну эпоху.
	StepScheduler(ctx context.Context) error

	// StateDict и LoadStateDict выгружают и загружают веса модели.
	StateDict(ctx context.Context) ([]byte, error)
	LoadStateDict(ctx context.Context, state []byte) error

	// OptimizerState и LoadOptimizerState — то же для оптимизатора.
	OptimizerState(ctx context.Context) ([]byte, error)
	LoadOptimizerState(ctx context.Context, state []byte) error

	// FreeMemory просит бэкенд вернуть память аллокатору (подсказка, не гарантия).
	FreeMemory(ctx context.Context) error

	Close() error
}
