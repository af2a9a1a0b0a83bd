package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	redisstorage "github.com/taoyao-code/amr-console/internal/storage/redis"
)

// TelemetryFeed 跨实例的遥测广播（redis pub/sub）
type TelemetryFeed interface {
	Subscribe(ctx context.Context) (<-chan redisstorage.Snapshot, error)
}

// TelemetryStream 以 SSE 转发遥测广播；多个网关实例时任一实例持有的订阅都可见。
// ?host= 只转发指定 AMR。
func (h *RobotHandler) TelemetryStream(c *gin.Context) {
	if h.feed == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "not_enabled", "message": "redis telemetry is disabled"})
		return
	}
	ctx := c.Request.Context()
	snaps, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.logger.Warn("telemetry subscribe failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": err.Error()})
		return
	}
	host := c.Query("host")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case s, ok := <-snaps:
			if !ok {
				return false
			}
			if host != "" && s.Host != host {
				return true
			}
			c.SSEvent("telemetry", s)
			return true
		}
	})
}
