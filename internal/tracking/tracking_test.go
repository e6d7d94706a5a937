package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
)

func TestNew_DispatchByURI(t *testing.T) {
	tracker, err := New("memory")
	require.NoError(t, err)
	require.IsType(t, &Memory{}, tracker)

	tracker, err = New("http://mlflow.local:5000")
	require.NoError(t, err)
	require.IsType(t, &MLflowClient{}, tracker)

	tracker, err = New("sqlite:///" + filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, tracker)
	require.NoError(t, tracker.Close())

	_, err = New("postgres://somewhere")
	require.Error(t, err)
}

func TestMemory_MetricHistoryKeepsOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.LogMetric(ctx, "run", "f_beta", 0.1, 1))
	require.NoError(t, m.LogMetric(ctx, "run", "f_beta", 0.4, 2))
	require.NoError(t, m.LogMetric(ctx, "run", "recall", 0.9, 1))

	history, err := m.MetricHistory(ctx, "run", "f_beta")
	require.NoError(t, err)
	require.Equal(t, []entity.MetricPoint{{Step: 1, Value: 0.1}, {Step: 2, Value: 0.4}}, history)
}

func TestMemory_RegisterAndTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	v1, err := m.RegisterModel(ctx, "run", "det", "res/det.pt")
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	require.Equal(t, entity.StageNone, v1.Stage)

	v2, err := m.RegisterModel(ctx, "run", "det", "res/det.pt")
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	moved, err := m.TransitionStage(ctx, "det", 2, entity.StageProduction)
	require.NoError(t, err)
	require.Equal(t, entity.StageProduction, moved.Stage)

	_, err = m.TransitionStage(ctx, "det", 99, entity.StageArchived)
	require.Error(t, err)

	_, err = m.LatestVersions(ctx, "ghost")
	require.Error(t, err)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	expID, err := store.EnsureExperiment(ctx, "fine-tuning", "mlruns")
	require.NoError(t, err)
	again, err := store.EnsureExperiment(ctx, "fine-tuning", "mlruns")
	require.NoError(t, err)
	require.Equal(t, expID, again)

	runID, err := store.StartRun(ctx, expID, "test-run")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, store.LogMetric(ctx, runID, "epoch_loss", 1.5, 1))
	require.NoError(t, store.LogMetric(ctx, runID, "epoch_loss", 1.1, 2))
	require.NoError(t, store.LogParam(ctx, runID, "seed", "0"))

	history, err := store.MetricHistory(ctx, runID, "epoch_loss")
	require.NoError(t, err)
	require.Equal(t, []entity.MetricPoint{{Step: 1, Value: 1.5}, {Step: 2, Value: 1.1}}, history)

	require.NoError(t, store.EndRun(ctx, runID))
}

func TestSQLiteStore_ModelRegistry(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	v1, err := store.RegisterModel(ctx, "run", "det", "res/det.pt")
	require.NoError(t, err)
	require.Equal(t, 1, v1.Version)
	v2, err := store.RegisterModel(ctx, "run", "det", "res/det.pt")
	require.NoError(t, err)
	require.Equal(t, 2, v2.Version)

	_, err = store.TransitionStage(ctx, "det", 1, entity.StageProduction)
	require.NoError(t, err)

	versions, err := store.LatestVersions(ctx, "det")
	require.NoError(t, err)
	require.Len(t, versions, 2)

	byStage := map[entity.Stage]int{}
	for _, v := range versions {
		byStage[v.Stage] = v.Version
	}
	require.Equal(t, 1, byStage[entity.StageProduction])
	require.Equal(t, 2, byStage[entity.StageNone])

	_, err = store.TransitionStage(ctx, "det", 99, entity.StageArchived)
	require.Error(t, err)
}

// mlflowStub имитирует нужное подмножество REST-протокола MLflow.
func mlflowStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}
	mux.HandleFunc("/api/2.0/mlflow/experiments/get-by-name", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "get-by-name")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "no experiment"})
	})
	mux.HandleFunc("/api/2.0/mlflow/experiments/create", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "experiments/create")
		reply(w, map[string]string{"experiment_id": "exp-1"})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/create", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "runs/create")
		reply(w, map[string]any{"run": map[string]any{"info": map[string]string{"run_id": "run-1"}}})
	})
	mux.HandleFunc("/api/2.0/mlflow/runs/log-metric", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "log-metric")
		reply(w, map[string]any{})
	})
	mux.HandleFunc("/api/2.0/mlflow/metrics/get-history", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "get-history")
		reply(w, map[string]any{"metrics": []map[string]any{
			{"key": "f_beta", "value": 0.5, "step": "1"},
			{"key": "f_beta", "value": 0.7, "step": "2"},
		}})
	})
	mux.HandleFunc("/api/2.0/mlflow/registered-models/create", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "registered-models/create")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error_code": "RESOURCE_ALREADY_EXISTS", "message": "exists"})
	})
	mux.HandleFunc("/api/2.0/mlflow/model-versions/create", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "model-versions/create")
		reply(w, map[string]any{"model_version": map[string]string{
			"name": "det", "version": "3", "current_stage": "None", "run_id": "run-1", "source": "res/det.pt",
		}})
	})
	mux.HandleFunc("/api/2.0/mlflow/model-versions/transition-stage", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "transition-stage")
		reply(w, map[string]any{"model_version": map[string]string{
			"name": "det", "version": "3", "current_stage": "Production", "run_id": "run-1", "source": "res/det.pt",
		}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func TestMLflowClient_EnsureExperimentCreatesMissing(t *testing.T) {
	server, calls := mlflowStub(t)
	client := NewMLflowClient(server.URL)

	id, err := client.EnsureExperiment(context.Background(), "fine-tuning", "mlruns")
	require.NoError(t, err)
	require.Equal(t, "exp-1", id)
	require.Equal(t, []string{"get-by-name", "experiments/create"}, *calls)
}

func TestMLflowClient_RunAndMetrics(t *testing.T) {
	server, _ := mlflowStub(t)
	client := NewMLflowClient(server.URL)
	ctx := context.Background()

	runID, err := client.StartRun(ctx, "exp-1", "test")
	require.NoError(t, err)
	require.Equal(t, "run-1", runID)

	require.NoError(t, client.LogMetric(ctx, runID, "f_beta", 0.5, 1))

	history, err := client.MetricHistory(ctx, runID, "f_beta")
	require.NoError(t, err)
	require.Equal(t, []entity.MetricPoint{{Step: 1, Value: 0.5}, {Step: 2, Value: 0.7}}, history)
}

func TestMLflowClient_RegisterToleratesExistingModel(t *testing.T) {
	server, _ := mlflowStub(t)
	client := NewMLflowClient(server.URL)

	version, err := client.RegisterModel(context.Background(), "run-1", "det", "res/det.pt")
	require.NoError(t, err)
	require.Equal(t, 3, version.Version)
	require.Equal(t, entity.StageNone, version.Stage)
}

func TestMLflowClient_SingleAttemptOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error_code": "INTERNAL_ERROR", "message": "boom"})
	}))
	t.Cleanup(server.Close)
	client := NewMLflowClient(server.URL)

	err := client.LogMetric(context.Background(), "run", "f_beta", 0.5, 1)
	require.Error(t, err)
	// запрос уходит ровно один раз, без повторов
	require.Equal(t, 1, calls)
}

func TestMLflowClient_TransitionStage(t *testing.T) {
	server, _ := mlflowStub(t)
	client := NewMLflowClient(server.URL)

	version, err := client.TransitionStage(context.Background(), "det", 3, entity.StageProduction)
	require.NoError(t, err)
	require.Equal(t, entity.StageProduction, version.Stage)
}
