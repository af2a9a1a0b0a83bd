package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/api/middleware"
	"github.com/taoyao-code/amr-console/internal/robot"
)

// RegisterRobotRoutes 注册 AMR 操作台路由
// feed 为 nil 时 /telemetry/stream 返回 501
func RegisterRobotRoutes(r *gin.Engine, mgr *robot.Manager, feed TelemetryFeed, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || mgr == nil {
		return
	}
	h := NewRobotHandler(mgr, feed, logger)

	api := r.Group("/api/robot")
	api.Use(middleware.CORS())
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	api.GET("", h.Status)
	api.GET("/host", h.GetHost)
	api.PUT("/host", h.SetHost)

	api.POST("/move", h.Move)
	api.POST("/jog", h.Jog)
	api.POST("/lift", h.Lift)
	api.POST("/relocate", h.Relocate)
	api.GET("/laser", h.LaserScan)

	api.GET("/maps", h.ListMaps)
	api.GET("/maps/:name", h.DownloadMap)
	api.PUT("/maps", h.UploadMap)
	api.POST("/slam/start", h.StartSlam)
	api.POST("/slam/stop", h.StopSlam)

	api.GET("/push", h.PushStatus)
	api.POST("/push", h.Subscribe)
	api.DELETE("/push", h.Unsubscribe)
	api.GET("/push/latest", h.LatestTelemetry)
	api.GET("/push/ws", h.PushStream)
	api.GET("/telemetry/stream", h.TelemetryStream)

	api.GET("/commands", h.RecentCommands)

	logger.Info("robot routes registered")
}
