package pg

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
)

func TestZapTraceLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &zapTraceLogger{logger: zap.New(core)}

	l.Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{"sql": "select 1"})
	l.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"err": "boom"})
	l.Log(context.Background(), tracelog.LogLevelTrace, "Prepare", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "select 1", entries[0].ContextMap()["sql"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestNewPool_BadDSN(t *testing.T) {
	_, err := NewPool(context.Background(), cfgpkg.DatabaseConfig{DSN: "://not-a-dsn"}, nil)
	assert.Error(t, err)
}

func TestNewPool_Live(t *testing.T) {
	dsn := os.Getenv("AMR_TEST_DSN")
	if dsn == "" {
		t.Skip("AMR_TEST_DSN not set")
	}
	pool, err := NewPool(context.Background(), cfgpkg.DatabaseConfig{DSN: dsn, MaxOpenConns: 2}, zap.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	db := SQLDB(pool)
	defer db.Close()
	require.NoError(t, db.PingContext(context.Background()))
}
