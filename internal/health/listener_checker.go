package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/amr-console/internal/tcpserver"
)

// ListenerChecker 模拟器 TCP 监听检查
type ListenerChecker struct {
	name   string
	server *tcpserver.Server
}

// NewListenerChecker name 一般为端口用途，如 "sim_push"
func NewListenerChecker(name string, server *tcpserver.Server) *ListenerChecker {
	return &ListenerChecker{name: name, server: server}
}

// Name 返回检查器名称
func (c *ListenerChecker) Name() string {
	return c.name
}

// Check 按连接数利用率判定
func (c *ListenerChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	active := c.server.ActiveConnections()
	maxConns := c.server.MaxConnections()
	details := map[string]any{
		"addr":               c.server.Addr(),
		"active_connections": active,
	}
	if !c.server.Listening() {
		return CheckResult{Status: StatusUnhealthy, Message: "not listening", Details: details, Latency: time.Since(start)}
	}
	if maxConns == 0 {
		return CheckResult{Status: StatusHealthy, Message: "no limiting enabled", Details: details, Latency: time.Since(start)}
	}

	utilization := float64(active) / float64(maxConns)
	status, message := poolStatus(utilization, 0.8, 0.95)
	details["max_connections"] = maxConns
	details["utilization"] = fmt.Sprintf("%.1f%%", utilization*100)
	if st := c.server.LimiterStats(); st != nil {
		details["rejected_total"] = st.RejectedTotal
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
