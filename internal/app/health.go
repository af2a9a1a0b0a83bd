package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	"github.com/taoyao-code/amr-console/internal/health"
	"github.com/taoyao-code/amr-console/internal/robot"
	"github.com/taoyao-code/amr-console/internal/simulator"
)

// NewReady 启动阶段就绪标记
func NewReady() *health.Readiness { return health.New() }

// NewHealthAggregator 创建健康检查聚合器；dbpool 为 nil 时不检查数据库
func NewHealthAggregator(dbpool *pgxpool.Pool) *health.Aggregator {
	agg := health.NewAggregator()
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

// AddRobotChecker 添加机器人连接检查器
func AddRobotChecker(aggregator *health.Aggregator, mgr *robot.Manager, client *amrclient.Client) {
	aggregator.AddChecker(health.NewRobotChecker(mgr, client.BreakerStats))
}

// AddListenerCheckers 为模拟设备的每个监听添加检查器
func AddListenerCheckers(aggregator *health.Aggregator, sim *simulator.Robot) {
	for _, name := range sim.Names() {
		aggregator.AddChecker(health.NewListenerChecker("listener_"+name, sim.Server(name)))
	}
}
