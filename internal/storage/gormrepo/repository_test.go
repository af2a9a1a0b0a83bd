package gormrepo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/storage"
	"github.com/taoyao-code/amr-console/internal/storage/models"
	"github.com/taoyao-code/amr-console/internal/storage/pg"
)

func TestZapLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogger(zap.New(core), 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(context.Background(), time.Now(), sql, nil)
	assert.Zero(t, logs.Len(), "warn 级别下快查询不输出")

	l.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)
	l.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "gorm slow query", logs.All()[0].Message)
	assert.Equal(t, "gorm query failed", logs.All()[1].Message)

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	assert.Equal(t, 2, logs.Len())
}

func TestRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("AMR_TEST_DSN")
	if dsn == "" {
		t.Skip("AMR_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pg.NewPool(ctx, cfgpkg.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	db, err := Open(pool, zap.NewNop())
	require.NoError(t, err)
	repo := New(db)
	require.NoError(t, repo.Migrate(ctx))

	key := "test_" + uuid.NewString()
	_, err = repo.GetSetting(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.PutSetting(ctx, key, "192.168.0.20"))
	require.NoError(t, repo.PutSetting(ctx, key, "192.168.0.21"))
	v, err := repo.GetSetting(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.21", v)

	id := uuid.NewString()
	require.NoError(t, repo.AppendCommandLog(ctx, &models.CommandLog{
		ID: id, Name: "map_list", APIID: 1300, Host: "192.168.0.21", Port: 19204, Result: models.ResultOK, LatencyMs: 12,
	}))
	logs, err := repo.ListRecentCommandLogs(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, id, logs[0].ID)
}
