package health

import "sync/atomic"

// Readiness 启动阶段就绪标记：存储初始化完成且机器人地址已恢复
type Readiness struct {
	storeReady atomic.Bool
	robotReady atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetStoreReady(v bool) { r.storeReady.Store(v) }
func (r *Readiness) SetRobotReady(v bool) { r.robotReady.Store(v) }

// Ready 各子系统均为 true
func (r *Readiness) Ready() bool {
	return r.storeReady.Load() && r.robotReady.Load()
}
