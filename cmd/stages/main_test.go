package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saugatapaul1010/Vision-OPs/internal/tracking"
)

func TestSaveProductionPlots(t *testing.T) {
	ctx := context.Background()
	tracker := tracking.NewMemory()
	_, err := tracker.RegisterModel(ctx, "run-prod", "det", "res/det.pt")
	require.NoError(t, err)
	require.NoError(t, tracker.LogMetric(ctx, "run-prod", "f_beta", 0.4, 1))
	require.NoError(t, tracker.LogMetric(ctx, "run-prod", "f_beta", 0.7, 2))

	dir := filepath.Join(t.TempDir(), "production_plots")
	require.NoError(t, saveProductionPlots(ctx, tracker, "run-prod", []string{"f_beta", "recall"}, dir))

	// график есть только для метрики с историей
	_, err = os.Stat(filepath.Join(dir, "f_beta.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "recall.png"))
	require.True(t, os.IsNotExist(err))
}

func TestSaveProductionPlots_NoRunID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, saveProductionPlots(context.Background(), tracking.NewMemory(), "", []string{"f_beta"}, dir))
}

func TestReadTestScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_score.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"best": true}`), 0o644))

	best, err := readTestScore(path)
	require.NoError(t, err)
	require.True(t, best)

	_, err = readTestScore(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
