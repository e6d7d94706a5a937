package backend

import (
	"context"
	"fmt"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

// Options — параметры выбора и запуска бэкенда обучения.
type Options struct {
	Kind         string // torch | onnx
	WorkerScript string // скрипт воркера для torch
	WorkerPort   int
	ModelPath    string // файл модели для onnx
	ScoreMin     float64
}

// New создаёт бэкенд по имени из конфига; незнакомое имя — ошибка.
func New(ctx context.Context, opts Options) (port.TrainingBackend, error) {
	switch opts.Kind {
	case "torch":
		return NewTorchWorker(ctx, opts.WorkerScript, opts.WorkerPort)
	case "onnx":
		return NewONNXDetector(opts.ModelPath, opts.ScoreMin)
	}
	return nil, fmt.Errorf("unknown training backend %q", opts.Kind)
}
