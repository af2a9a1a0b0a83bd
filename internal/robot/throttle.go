package robot

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// JogThrottle 点动令牌桶。按住方向键时界面会持续重发点动命令，超出速率的直接拒绝。
type JogThrottle struct {
	limiter  *rate.Limiter
	rate     float64
	burst    int
	allowed  atomic.Int64
	rejected atomic.Int64
}

// NewJogThrottle ratePerSec<=0 时不限流
func NewJogThrottle(ratePerSec float64, burst int) *JogThrottle {
	if ratePerSec <= 0 {
		return &JogThrottle{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = 1
	}
	return &JogThrottle{
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		rate:    ratePerSec,
		burst:   burst,
	}
}

// Allow 非阻塞检查
func (t *JogThrottle) Allow() bool {
	if t.limiter.Allow() {
		t.allowed.Add(1)
		return true
	}
	t.rejected.Add(1)
	return false
}

// Stats 统计
func (t *JogThrottle) Stats() ThrottleStats {
	return ThrottleStats{
		RatePerSecond: t.rate,
		Burst:         t.burst,
		AllowedTotal:  t.allowed.Load(),
		RejectedTotal: t.rejected.Load(),
	}
}

// ThrottleStats 限流统计
type ThrottleStats struct {
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
	AllowedTotal  int64   `json:"allowed_total"`
	RejectedTotal int64   `json:"rejected_total"`
}
