package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/saugatapaul1010/Vision-OPs/internal/domain/entity"
	"github.com/saugatapaul1010/Vision-OPs/internal/tracking"
)

func TestUpdateModelVersionStages_PromotesNewest(t *testing.T) {
	ctx := context.Background()
	tracker := tracking.NewMemory()
	for i := 0; i < 3; i++ {
		_, err := tracker.RegisterModel(ctx, "run", "det", "res/det.pt")
		require.NoError(t, err)
	}

	promoted, archived, err := UpdateModelVersionStages(ctx, tracker, "det")
	require.NoError(t, err)
	require.Equal(t, 3, promoted.Version)
	require.Equal(t, entity.StageProduction, promoted.Stage)
	require.Empty(t, archived)
}

func TestUpdateModelVersionStages_ArchivesPreviousProduction(t *testing.T) {
	ctx := context.Background()
	tracker := tracking.NewMemory()
	for i := 0; i < 2; i++ {
		_, err := tracker.RegisterModel(ctx, "run", "det", "res/det.pt")
		require.NoError(t, err)
	}
	_, err := tracker.TransitionStage(ctx, "det", 1, entity.StageProduction)
	require.NoError(t, err)

	promoted, archived, err := UpdateModelVersionStages(ctx, tracker, "det")
	require.NoError(t, err)
	require.Equal(t, 2, promoted.Version)
	require.Len(t, archived, 1)
	require.Equal(t, 1, archived[0].Version)
	require.Equal(t, entity.StageArchived, archived[0].Stage)
}

func TestUpdateModelVersionStages_Idempotent(t *testing.T) {
	ctx := context.Background()
	tracker := tracking.NewMemory()
	for i := 0; i < 2; i++ {
		_, err := tracker.RegisterModel(ctx, "run", "det", "res/det.pt")
		require.NoError(t, err)
	}

	first, _, err := UpdateModelVersionStages(ctx, tracker, "det")
	require.NoError(t, err)
	second, archived, err := UpdateModelVersionStages(ctx, tracker, "det")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Empty(t, archived)
}

func TestUpdateModelVersionStages_UnknownModel(t *testing.T) {
	_, _, err := UpdateModelVersionStages(context.Background(), tracking.NewMemory(), "ghost")
	require.Error(t, err)
}
