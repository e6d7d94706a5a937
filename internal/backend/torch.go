package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
	"github.com/saugatapaul1010/Vision-OPs/internal/logger"
)

const workerStartTimeout = 120 * time.Second

// TorchWorker гоняет обучение в подпроцессе-воркере и общается с ним
// по HTTP. Сам процесс с моделью и оптимизатором живёт до Close.
type TorchWorker struct {
	cmd    *exec.Cmd
	client *resty.Client
}

var _ port.TrainingBackend = (*TorchWorker)(nil)

// NewTorchWorker запускает воркер из script на локальном порту и ждёт
// его готовности.
func NewTorchWorker(ctx context.Context, script string, workerPort int) (*TorchWorker, error) {
	cmd := exec.CommandContext(ctx, "python3", script, "--port", strconv.Itoa(workerPort))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", script, err)
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("http://127.0.0.1:%d", workerPort)).
		SetTimeout(10 * time.Minute)

	w := &TorchWorker{cmd: cmd, client: client}
	if err := w.waitReady(ctx); err != nil {
		_ = cmd.Process.Kill()
		return nil, err
	}
	logger.L().Info("training worker started",
		zap.String("script", script),
		zap.Int("port", workerPort))
	return w, nil
}

func (w *TorchWorker) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(workerStartTimeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := w.client.R().SetContext(ctx).Get("/ping")
		if err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("worker did not become ready in %s", workerStartTimeout)
}

type workerError struct {
	Error string `json:"error"`
}

func (w *TorchWorker) post(ctx context.Context, path string, body, result any) error {
	var wErr workerError
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&wErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("worker %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("worker %s: %s", path, wErr.Error)
	}
	return nil
}

func encodeImages(images []image.Image) ([]string, error) {
	out := make([]string, len(images))
	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode image %d: %w", i, err)
		}
		out[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return out, nil
}

type targetPayload struct {
	Boxes  []entity.Box `json:"boxes"`
	Labels []int64      `json:"labels"`
}

func (w *TorchWorker) Setup(ctx context.Context, setup port.BackendSetup) error {
	if err := setup.Validate(); err != nil {
		return err
	}
	return w.post(ctx, "/setup", map[string]any{
		"num_classes": setup.NumClasses,
		"device":      setup.Device,
		"optimizer":   setup.Optimizer,
		"scheduler":   setup.Scheduler,
	}, &struct{}{})
}

func (w *TorchWorker) TrainStep(ctx context.Context, images []image.Image, targets []entity.Target) (map[string]float64, error) {
	encoded, err := encodeImages(images)
	if err != nil {
		return nil, err
	}
	payload := make([]targetPayload, len(targets))
	for i, t := range targets {
		payload[i] = targetPayload{Boxes: t.Boxes, Labels: t.Labels}
	}

	var result struct {
		Losses map[string]float64 `json:"losses"`
	}
	body := map[string]any{"images": encoded, "targets": payload}
	if err := w.post(ctx, "/train_step", body, &result); err != nil {
		return nil, err
	}
	return result.Losses, nil
}

func (w *TorchWorker) Predict(ctx context.Context, images []image.Image) ([]entity.Prediction, error) {
	encoded, err := encodeImages(images)
	if err != nil {
		return nil, err
	}
	var result struct {
		Predictions []entity.Prediction `json:"predictions"`
	}
	if err := w.post(ctx, "/predict", map[string]any{"images": encoded}, &result); err != nil {
		return nil, err
	}
	return result.Predictions, nil
}

func (w *TorchWorker) StepScheduler(ctx context.Context) error {
	return w.post(ctx, "/step_scheduler", struct{}{}, &struct{}{})
}

func (w *TorchWorker) StateDict(ctx context.Context) ([]byte, error) {
	return w.fetchState(ctx, "/state_dict")
}

func (w *TorchWorker) LoadStateDict(ctx context.Context, state []byte) error {
	return w.pushState(ctx, "/load_state_dict", state)
}

func (w *TorchWorker) OptimizerState(ctx context.Context) ([]byte, error) {
	return w.fetchState(ctx, "/optimizer_state")
}

func (w *TorchWorker) LoadOptimizerState(ctx context.Context, state []byte) error {
	return w.pushState(ctx, "/load_optimizer_state", state)
}

func (w *TorchWorker) fetchState(ctx context.Context, path string) ([]byte, error) {
	var result struct {
		State string `json:"state"`
	}
	if err := w.post(ctx, path, struct{}{}, &result); err != nil {
		return nil, err
	}
	state, err := base64.StdEncoding.DecodeString(result.State)
	if err != nil {
		return nil, fmt.Errorf("worker %s: decode state: %w", path, err)
	}
	return state, nil
}

func (w *TorchWorker) pushState(ctx context.Context, path string, state []byte) error {
	body := map[string]string{"state": base64.StdEncoding.EncodeToString(state)}
	return w.post(ctx, path, body, &struct{}{})
}

func (w *TorchWorker) FreeMemory(ctx context.Context) error {
	return w.post(ctx, "/free_memory", struct{}{}, &struct{}{})
}

// Close просит воркер завершиться и дожидается выхода процесса.
func (w *TorchWorker) Close() error {
	_, _ = w.client.R().Post("/shutdown")
	if w.cmd == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- w.cmd.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		_ = w.cmd.Process.Kill()
		<-done
		return nil
	}
}
