package tracking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/domain/port"
)

const apiPrefix = "/api/2.0/mlflow"

// MLflowClient — клиент REST-протокола MLflow Tracking и Model Registry.
type MLflowClient struct {
	client *resty.Client
}

// NewMLflowClient создаёт клиент для сервера по базовому URI.
func NewMLflowClient(baseURI string) *MLflowClient {
	client := resty.New().
		SetBaseURL(baseURI + apiPrefix).
		SetTimeout(30 * time.Second)
	return &MLflowClient{client: client}
}

var _ port.ExperimentTracker = (*MLflowClient)(nil)

type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

type modelVersionPayload struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	CurrentStage string `json:"current_stage"`
	RunID        string `json:"run_id"`
	Source       string `json:"source"`
}

func (p modelVersionPayload) toEntity() (entity.ModelVersion, error) {
	version, err := strconv.Atoi(p.Version)
	if err != nil {
		return entity.ModelVersion{}, fmt.Errorf("model version %q is not a number: %w", p.Version, err)
	}
	return entity.ModelVersion{
		Name:    p.Name,
		Version: version,
		Stage:   entity.Stage(p.CurrentStage),
		RunID:   p.RunID,
		Source:  p.Source,
	}, nil
}

func (c *MLflowClient) post(ctx context.Context, path string, body, result any) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("mlflow %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mlflow %s: %s: %s", path, apiErr.ErrorCode, apiErr.Message)
	}
	return nil
}

func (c *MLflowClient) get(ctx context.Context, path string, query map[string]string, result any) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("mlflow %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("mlflow %s: %s: %s", path, apiErr.ErrorCode, apiErr.Message)
	}
	return nil
}

func (c *MLflowClient) EnsureExperiment(ctx context.Context, name, artifactLocation string) (string, error) {
	var found struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	err := c.get(ctx, "/experiments/get-by-name", map[string]string{"experiment_name": name}, &found)
	if err == nil {
		return found.Experiment.ExperimentID, nil
	}

	var created struct {
		ExperimentID string `json:"experiment_id"`
	}
	body := map[string]string{"name": name}
	if artifactLocation != "" {
		body["artifact_location"] = artifactLocation
	}
	if err := c.post(ctx, "/experiments/create", body, &created); err != nil {
		return "", err
	}
	return created.ExperimentID, nil
}

func (c *MLflowClient) StartRun(ctx context.Context, experimentID, runName string) (string, error) {
	var result struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	body := map[string]any{
		"experiment_id": experimentID,
		"run_name":      runName,
		"start_time":    time.Now().UnixMilli(),
	}
	if err := c.post(ctx, "/runs/create", body, &result); err != nil {
		return "", err
	}
	return result.Run.Info.RunID, nil
}

func (c *MLflowClient) EndRun(ctx context.Context, runID string) error {
	body := map[string]any{
		"run_id":   runID,
		"status":   "FINISHED",
		"end_time": time.Now().UnixMilli(),
	}
	return c.post(ctx, "/runs/update", body, &struct{}{})
}

func (c *MLflowClient) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	body := map[string]any{
		"run_id":    runID,
		"key":       key,
		"value":     value,
		"timestamp": time.Now().UnixMilli(),
		"step":      step,
	}
	return c.post(ctx, "/runs/log-metric", body, &struct{}{})
}

func (c *MLflowClient) LogParam(ctx context.Context, runID, key, value string) error {
	body := map[string]string{"run_id": runID, "key": key, "value": value}
	return c.post(ctx, "/runs/log-parameter", body, &struct{}{})
}

func (c *MLflowClient) MetricHistory(ctx context.Context, runID, key string) ([]entity.MetricPoint, error) {
	var result struct {
		Metrics []struct {
			Value float64 `json:"value"`
			Step  int64   `json:"step,string"`
		} `json:"metrics"`
	}
	query := map[string]string{"run_id": runID, "metric_key": key}
	if err := c.get(ctx, "/metrics/get-history", query, &result); err != nil {
		return nil, err
	}
	points := make([]entity.MetricPoint, len(result.Metrics))
	for i, m := range result.Metrics {
		points[i] = entity.MetricPoint{Step: int(m.Step), Value: m.Value}
	}
	return points, nil
}

func (c *MLflowClient) RegisterModel(ctx context.Context, runID, name, source string) (entity.ModelVersion, error) {
	// создание зарегистрированной модели идемпотентно: повтор не ошибка
	err := c.post(ctx, "/registered-models/create", map[string]string{"name": name}, &struct{}{})
	if err != nil && !isAlreadyExists(err) {
		return entity.ModelVersion{}, err
	}

	var result struct {
		ModelVersion modelVersionPayload `json:"model_version"`
	}
	body := map[string]string{"name": name, "source": source, "run_id": runID}
	if err := c.post(ctx, "/model-versions/create", body, &result); err != nil {
		return entity.ModelVersion{}, err
	}
	return result.ModelVersion.toEntity()
}

func (c *MLflowClient) LatestVersions(ctx context.Context, name string) ([]entity.ModelVersion, error) {
	var result struct {
		ModelVersions []modelVersionPayload `json:"model_versions"`
	}
	err := c.get(ctx, "/registered-models/get-latest-versions", map[string]string{"name": name}, &result)
	if err != nil {
		return nil, err
	}
	versions := make([]entity.ModelVersion, 0, len(result.ModelVersions))
	for _, payload := range result.ModelVersions {
		v, err := payload.toEntity()
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func (c *MLflowClient) TransitionStage(ctx context.Context, name string, version int, stage entity.Stage) (entity.ModelVersion, error) {
	var result struct {
		ModelVersion modelVersionPayload `json:"model_version"`
	}
	body := map[string]any{
		"name":                      name,
		"version":                   strconv.Itoa(version),
		"stage":                     string(stage),
		"archive_existing_versions": false,
	}
	if err := c.post(ctx, "/model-versions/transition-stage", body, &result); err != nil {
		return entity.ModelVersion{}, err
	}
	return result.ModelVersion.toEntity()
}

func (c *MLflowClient) Close() error { return nil }

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(err.Error(), "RESOURCE_ALREADY_EXISTS")
}
