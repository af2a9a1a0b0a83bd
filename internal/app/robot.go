package app

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/metrics"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/pushsub"
	"github.com/taoyao-code/amr-console/internal/simulator"
)

// NewCatalog 加载接口目录（内置目录叠加配置文件）
func NewCatalog(cfg cfgpkg.RobotConfig, log *zap.Logger) (*amr.Catalog, error) {
	cat, err := amr.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.CatalogPath != "" {
		log.Info("amr catalog loaded", zap.String("path", cfg.CatalogPath), zap.Strings("apis", cat.Names()))
	}
	return cat, nil
}

// NewClient 创建请求/响应客户端并接入指标
func NewClient(cfg cfgpkg.RobotConfig, appm *metrics.AppMetrics, log *zap.Logger) *amrclient.Client {
	c := amrclient.New(log.Named("amrclient"),
		amrclient.WithDialTimeout(cfg.DialTimeout),
		amrclient.WithDefaultTimeout(cfg.CallTimeout),
		amrclient.WithMaxRequestBytes(cfg.MaxFrameBytes),
		amrclient.WithMaxResponseBytes(cfg.MaxFrameBytes),
		amrclient.WithBreaker(cfg.Breaker.Threshold, cfg.Breaker.Timeout),
	)
	c.SetMetricsCallbacks(appm.ObserveCall, appm.AddBytesReceived)
	return c
}

// NewPushChannel 创建推送订阅通道并接入指标
func NewPushChannel(appm *metrics.AppMetrics, log *zap.Logger) *pushsub.Channel {
	ch := pushsub.New(log.Named("pushsub"))
	ch.SetMetricsCallbacks(appm.CountPushFrame, appm.SetPushActive)
	return ch
}

// NewSimulator 创建模拟设备并接入指标
func NewSimulator(cfg cfgpkg.SimulatorConfig, cat *amr.Catalog, appm *metrics.AppMetrics, log *zap.Logger) (*simulator.Robot, error) {
	sim, err := simulator.New(cfg, cat, log.Named("simulator"))
	if err != nil {
		return nil, err
	}
	sim.SetMetricsCallbacks(func(port string) { appm.SimulatorAccepts.WithLabelValues(port).Inc() })
	return sim, nil
}
