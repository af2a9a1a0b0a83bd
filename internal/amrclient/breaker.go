package amrclient

import (
	"errors"
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常放行
	BreakerOpen                         // 熔断，直接拒绝
	BreakerHalfOpen                     // 半开，放行少量试探请求
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 对端连续失败，熔断期内拒绝连接
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyTrials 半开状态试探请求已满
	ErrTooManyTrials = errors.New("too many trial requests in half-open state")
)

// breaker 单个机器人地址的熔断器。
// 只统计传输层失败（连接、超时、提前关闭），正文错误和业务错误不计入。
type breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	trials       int
	successes    int
	lastFailTime time.Time
	trips        int64

	threshold   int
	timeout     time.Duration
	halfOpenMax int

	now func() time.Time
}

func newBreaker(threshold int, timeout time.Duration) *breaker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &breaker{threshold: threshold, timeout: timeout, halfOpenMax: 2, now: time.Now}
}

// allow 调用前检查
func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailTime) < b.timeout {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.trials, b.successes = 0, 0
		fallthrough
	case BreakerHalfOpen:
		if b.trials >= b.halfOpenMax {
			return ErrTooManyTrials
		}
		b.trials++
	}
	return nil
}

// record 记录一次调用结果
func (b *breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		b.lastFailTime = b.now()
		// 半开失败立即熔断
		if b.state == BreakerHalfOpen || (b.state == BreakerClosed && b.failures >= b.threshold) {
			b.state = BreakerOpen
			b.trips++
		}
		return
	}

	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.halfOpenMax {
			b.state = BreakerClosed
			b.failures = 0
		}
	case BreakerClosed:
		b.failures = 0
	}
}

func (b *breaker) snapshot() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{State: b.state.String(), Failures: b.failures, Trips: b.trips, LastFailure: b.lastFailTime}
}

// BreakerStats 熔断器统计
type BreakerStats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	Trips       int64     `json:"trips"`
	LastFailure time.Time `json:"last_failure"`
}

// breakerSet 按地址维护熔断器；threshold <= 0 时不启用
type breakerSet struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	byAddr    map[string]*breaker
}

func newBreakerSet(threshold int, timeout time.Duration) *breakerSet {
	return &breakerSet{threshold: threshold, timeout: timeout, byAddr: make(map[string]*breaker)}
}

func (s *breakerSet) get(addr string) *breaker {
	if s == nil || s.threshold <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byAddr[addr]
	if !ok {
		b = newBreaker(s.threshold, s.timeout)
		s.byAddr[addr] = b
	}
	return b
}

func (s *breakerSet) stats() map[string]BreakerStats {
	out := make(map[string]BreakerStats)
	if s == nil {
		return out
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, b := range s.byAddr {
		out[addr] = b.snapshot()
	}
	return out
}
