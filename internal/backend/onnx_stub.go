//go:build !gocv
// +build !gocv

package backend

import (
	"context"
	"errors"
	"image"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

var errNoGocv = errors.New("gocv build tag is not enabled")

// ONNXDetector — заглушка инференс-бэкенда (сборка без OpenCV).
type ONNXDetector struct{}

var _ port.TrainingBackend = (*ONNXDetector)(nil)

// NewONNXDetector возвращает ошибку, если сборка без тега gocv.
func NewONNXDetector(modelPath string, scoreMin float64) (*ONNXDetector, error) {
	_ = modelPath
	_ = scoreMin
	return nil, errNoGocv
}

func (d *ONNXDetector) Setup(ctx context.Context, setup port.BackendSetup) error { return errNoGocv }

func (d *ONNXDetector) TrainStep(ctx context.Context, images []image.Image, targets []entity.Target) (map[string]float64, error) {
	return nil, errNoGocv
}

func (d *ONNXDetector) Predict(ctx context.Context, images []image.Image) ([]entity.Prediction, error) {
	return nil, errNoGocv
}

func (d *ONNXDetector) StepScheduler(ctx context.Context) error { return errNoGocv }

func (d *ONNXDetector) StateDict(ctx context.Context) ([]byte, error) { return nil, errNoGocv }

func (d *ONNXDetector) LoadStateDict(ctx context.Context, state []byte) error { return errNoGocv }

func (d *ONNXDetector) OptimizerState(ctx context.Context) ([]byte, error) { return nil, errNoGocv }

func (d *ONNXDetector) LoadOptimizerState(ctx context.Context, state []byte) error {
	return errNoGocv
}

func (d *ONNXDetector) FreeMemory(ctx context.Context) error { return errNoGocv }

func (d *ONNXDetector) Close() error { return nil }
