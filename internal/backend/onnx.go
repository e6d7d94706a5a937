//go:build gocv
// +build gocv

package backend

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

// ErrInferenceOnly возвращается на операции обучения инференс-бэкендом.
var ErrInferenceOnly = errors.New("onnx backend is inference-only")

// ONNXDetector — инференс экспортированного детектора через OpenCV DNN.
// Годится для оценки уже обученной модели, но не для обучения.
type ONNXDetector struct {
	net       gocv.Net
	inputSize image.Point
	scoreMin  float64
}

var _ port.TrainingBackend = (*ONNXDetector)(nil)

// NewONNXDetector загружает сеть из файла ONNX.
func NewONNXDetector(modelPath string, scoreMin float64) (*ONNXDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load onnx model %s failed", modelPath)
	}
	return &ONNXDetector{
		net:       net,
		inputSize: image.Pt(800, 800),
		scoreMin:  scoreMin,
	}, nil
}

func (d *ONNXDetector) Setup(ctx context.Context, setup port.BackendSetup) error {
	return setup.Validate()
}

func (d *ONNXDetector) TrainStep(ctx context.Context, images []image.Image, targets []entity.Target) (map[string]float64, error) {
	return nil, ErrInferenceOnly
}

func (d *ONNXDetector) Predict(ctx context.Context, images []image.Image) ([]entity.Prediction, error) {
	out := make([]entity.Prediction, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := d.detect(img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = pred
	}
	return out, nil
}

// detect разбирает выход детекционной сети формата
// [batch, class, score, x_min, y_min, x_max, y_max] с нормированными координатами.
func (d *ONNXDetector) detect(img image.Image) (entity.Prediction, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return entity.Prediction{}, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")

	output := d.net.Forward("")
	defer output.Close()

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	var pred entity.Prediction
	data := output.Clone()
	defer data.Close()
	flat, err := data.DataPtrFloat32()
	if err != nil {
		return entity.Prediction{}, err
	}
	for i := 0; i+7 <= len(flat); i += 7 {
		score := float64(flat[i+2])
		if score < d.scoreMin {
			continue
		}
		pred.Boxes = append(pred.Boxes, entity.Box{
			float64(flat[i+3]) * w,
			float64(flat[i+4]) * h,
			float64(flat[i+5]) * w,
			float64(flat[i+6]) * h,
		})
		pred.Scores = append(pred.Scores, score)
		pred.Labels = append(pred.Labels, int64(flat[i+1]))
	}
	return pred, nil
}

func (d *ONNXDetector) StepScheduler(ctx context.Context) error { return nil }

func (d *ONNXDetector) StateDict(ctx context.Context) ([]byte, error) {
	return nil, ErrInferenceOnly
}

func (d *ONNXDetector) LoadStateDict(ctx context.Context, state []byte) error {
	return ErrInferenceOnly
}

func (d *ONNXDetector) OptimizerState(ctx context.Context) ([]byte, error) {
	return nil, ErrInferenceOnly
}

func (d *ONNXDetector) LoadOptimizerState(ctx context.Context, state []byte) error {
	return ErrInferenceOnly
}

func (d *ONNXDetector) FreeMemory(ctx context.Context) error { return nil }

func (d *ONNXDetector) Close() error {
	return d.net.Close()
}
