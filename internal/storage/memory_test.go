package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/amr-console/internal/storage/models"
)

func TestMemoryRepo_Settings(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo(10)

	_, err := repo.GetSetting(ctx, KeyAMRHost)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.PutSetting(ctx, KeyAMRHost, "192.168.0.20"))
	require.NoError(t, repo.PutSetting(ctx, KeyAMRHost, "192.168.0.21"))
	v, err := repo.GetSetting(ctx, KeyAMRHost)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.21", v)
}

func TestMemoryRepo_CommandLogRing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo(3)

	logs, err := repo.ListRecentCommandLogs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, logs)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AppendCommandLog(ctx, &models.CommandLog{ID: fmt.Sprintf("c%d", i), Name: "map_list"}))
	}

	logs, err = repo.ListRecentCommandLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "c4", logs[0].ID)
	assert.Equal(t, "c3", logs[1].ID)
	assert.Equal(t, "c2", logs[2].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())

	logs, err = repo.ListRecentCommandLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "c4", logs[0].ID)
}
