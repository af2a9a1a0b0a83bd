// amrsim 本地模拟 AMR，用于联调控制台
package main

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/logging"
)

func main() {
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}

	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := bootstrap.RunSimulator(cfg, zap.L().Named("amrsim")); err != nil {
		zap.L().Fatal("amr simulator exited", zap.Error(err))
	}
}
