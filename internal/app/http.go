package app

import (
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器；metrics 关闭时不挂载指标路由
func NewHTTPServer(cfg cfgpkg.HTTPConfig, mc cfgpkg.MetricsConfig, metricsHandler http.Handler, readyFn func() bool, log *zap.Logger) *httpserver.Server {
	if !mc.Enable {
		metricsHandler = nil
	}
	return httpserver.New(cfg, mc.Path, metricsHandler, readyFn, log)
}
