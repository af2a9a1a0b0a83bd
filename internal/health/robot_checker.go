package health

import (
	"context"
	"time"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	"github.com/taoyao-code/amr-console/internal/pushsub"
)

// RobotStatus 机器人连接状态来源
type RobotStatus interface {
	Host() string
	PushState() pushsub.State
}

// RobotChecker AMR 连接检查：未设置地址或熔断打开时降级。
// 不主动探测设备，避免健康检查本身向设备发送命令。
type RobotChecker struct {
	robot    RobotStatus
	breakers func() map[string]amrclient.BreakerStats
}

// NewRobotChecker breakers 可为 nil
func NewRobotChecker(robot RobotStatus, breakers func() map[string]amrclient.BreakerStats) *RobotChecker {
	return &RobotChecker{robot: robot, breakers: breakers}
}

// Name 返回检查器名称
func (c *RobotChecker) Name() string {
	return "robot"
}

// Check 执行检查
func (c *RobotChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	host := c.robot.Host()
	details := map[string]any{
		"host":       host,
		"push_state": c.robot.PushState().String(),
	}
	if host == "" {
		return CheckResult{Status: StatusDegraded, Message: "amr host not set", Details: details, Latency: time.Since(start)}
	}

	status, message := StatusHealthy, "ok"
	if c.breakers != nil {
		var open []string
		for addr, st := range c.breakers() {
			if st.State == amrclient.BreakerOpen.String() {
				open = append(open, addr)
			}
		}
		if len(open) > 0 {
			status, message = StatusDegraded, "circuit open"
			details["open_circuits"] = open
		}
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
