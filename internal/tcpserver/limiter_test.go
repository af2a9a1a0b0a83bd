package tcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("基本限流功能", func(t *testing.T) {
		limiter := NewConnectionLimiter(3, time.Second)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, limiter.Acquire(ctx), "第%d次获取", i+1)
		}

		ctx4, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		assert.Error(t, limiter.Acquire(ctx4), "第4次应该失败")

		limiter.Release()
		assert.NoError(t, limiter.Acquire(ctx), "释放后应可获取")
	})

	t.Run("统计功能", func(t *testing.T) {
		limiter := NewConnectionLimiter(10, time.Second)
		for i := 0; i < 5; i++ {
			_ = limiter.Acquire(context.Background())
		}
		stats := limiter.Stats()
		assert.Equal(t, 5, stats.ActiveConnections)
		assert.Equal(t, 10, stats.MaxConnections)
		assert.InDelta(t, 0.5, stats.Utilization, 1e-9)
	})

	t.Run("拒绝计数", func(t *testing.T) {
		limiter := NewConnectionLimiter(1, 20*time.Millisecond)
		require.NoError(t, limiter.Acquire(context.Background()))
		assert.Error(t, limiter.Acquire(context.Background()))
		assert.Equal(t, int64(1), limiter.Stats().RejectedTotal)
	})

	t.Run("多余释放无副作用", func(t *testing.T) {
		limiter := NewConnectionLimiter(2, time.Second)
		limiter.Release()
		assert.Equal(t, 0, limiter.Current())
	})
}
