package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/app"
	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/metrics"
)

// RunSimulator 启动模拟 AMR：各接口端口 + 推送端口，另起 HTTP 提供健康检查与指标
func RunSimulator(cfg *cfgpkg.Config, log *zap.Logger) error {
	log.Info("starting amr simulator", zap.String("host", cfg.Simulator.Host))

	reg, appm := app.NewMetrics()
	ready := app.NewReady()
	ready.SetStoreReady(true)

	cat, err := app.NewCatalog(cfg.Robot, log)
	if err != nil {
		return err
	}
	sim, err := app.NewSimulator(cfg.Simulator, cat, appm, log)
	if err != nil {
		return err
	}
	if err := sim.Start(); err != nil {
		log.Error("simulator start failed", zap.Error(err))
		return err
	}
	ready.SetRobotReady(true)

	httpCfg := cfg.HTTP
	httpCfg.Addr = cfg.Simulator.HTTPAddr
	httpSrv := app.NewHTTPServer(httpCfg, cfg.Metrics, metrics.Handler(reg), ready.Ready, log)
	healthAgg := app.NewHealthAggregator(nil)
	app.AddListenerCheckers(healthAgg, sim)
	httpSrv.Register(func(r *gin.Engine) {
		app.RegisterHealthRoutes(r, healthAgg)
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
			errCh <- err
		}
	}()

	waitErr := waitForShutdown(log, errCh)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	if err := sim.Shutdown(ctx); err != nil {
		log.Warn("simulator shutdown", zap.Error(err))
	}
	log.Info("simulator stopped")
	return waitErr
}
