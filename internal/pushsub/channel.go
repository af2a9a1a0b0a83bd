// Package pushsub 推送订阅通道：长连接上持续接收 AMR 主动推送的帧。
package pushsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// Config 一次订阅的连接参数
type Config struct {
	Host            string
	Port            int
	Profile         amr.Profile
	DialTimeout     time.Duration
	IdleTimeout     time.Duration // 0 不限制；超过该时长无数据视为超时
	MaxFrameBytes   uint32        // 0 不限制；超过视为帧头损坏
	ReadBufferBytes int
}

// Addr host:port
func (c Config) Addr() string { return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) }

// Stats 订阅统计
type Stats struct {
	ID          string    `json:"id"`
	State       string    `json:"state"`
	Addr        string    `json:"addr"`
	Frames      uint64    `json:"frames"`
	FrameErrors uint64    `json:"frame_errors"`
	Bytes       uint64    `json:"bytes"`
	Since       time.Time `json:"since"`
}

// Channel 推送通道，同一时间最多一个活动订阅
type Channel struct {
	logger *zap.Logger

	// subMu 串行化 Subscribe：拆除旧订阅、登记新订阅与建连作为一个整体
	subMu sync.Mutex

	mu   sync.Mutex
	cur  *subscription
	last State

	onFrame  func(result string)
	onActive func(active bool)

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New 创建通道
func New(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &net.Dialer{}
	return &Channel{logger: logger, last: StateIdle, dial: d.DialContext}
}

// SetMetricsCallbacks 设置指标回调
func (c *Channel) SetMetricsCallbacks(onFrame func(result string), onActive func(active bool)) {
	c.onFrame, c.onActive = onFrame, onActive
}

// Subscribe 建立新订阅，已有订阅先被拆除。不发送任何请求帧。
// 建连失败直接返回错误，不产生事件。
func (c *Channel) Subscribe(ctx context.Context, cfg Config, h Handler) (string, error) {
	if cfg.Host == "" || cfg.Port <= 0 || cfg.Port > 65535 {
		return "", fmt.Errorf("invalid push endpoint %q", cfg.Addr())
	}
	if cfg.Profile == nil {
		cfg.Profile = amr.ProfileMagic
	}
	if cfg.ReadBufferBytes <= 0 {
		cfg.ReadBufferBytes = 4096
	}
	if h == nil {
		h = func(Event) {}
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.Unsubscribe()

	// 建连可被 Unsubscribe 取消
	dialCtx, cancelDial := context.WithCancel(ctx)
	defer cancelDial()
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, cfg.DialTimeout)
		defer cancel()
	}

	s := &subscription{
		id:         uuid.NewString(),
		cfg:        cfg,
		handler:    h,
		ch:         c,
		done:       make(chan struct{}),
		since:      time.Now(),
		cancelDial: cancelDial,
	}
	s.state.Store(int32(StateConnecting))

	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()

	conn, err := c.dial(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		s.emitMu.Lock()
		canceled := s.stopped
		s.stopped = true
		s.state.Store(int32(StateClosed))
		s.emitMu.Unlock()
		c.release(s)
		close(s.done)

		kind := amr.KindConnection
		switch {
		case canceled:
			err = errors.New("subscription torn down while connecting")
		case errors.Is(dialCtx.Err(), context.DeadlineExceeded):
			kind = amr.KindTimeout
		}
		return "", &amr.Error{Kind: kind, Op: "dial", Addr: cfg.Addr(), Err: err}
	}

	s.emitMu.Lock()
	if s.stopped {
		// 建连期间已被取消
		s.emitMu.Unlock()
		_ = conn.Close()
		close(s.done)
		return "", &amr.Error{Kind: amr.KindConnection, Op: "dial", Addr: cfg.Addr(), Err: errors.New("subscription torn down while connecting")}
	}
	s.conn = conn
	s.state.Store(int32(StateStreaming))
	s.emitMu.Unlock()

	if c.onActive != nil {
		c.onActive(true)
	}
	c.logger.Info("push subscription started", zap.String("id", s.id), zap.String("addr", cfg.Addr()))

	go s.readLoop()
	return s.id, nil
}

// Unsubscribe 销毁当前订阅的连接；返回后不再投递任何事件。幂等。
func (c *Channel) Unsubscribe() {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	if s != nil {
		c.last = StateClosed
	}
	c.mu.Unlock()
	if s == nil {
		return
	}
	if s.stop() {
		c.logger.Info("push subscription stopped", zap.String("id", s.id))
	}
	<-s.done
}

// release 建连失败时移除仍登记为当前的订阅
func (c *Channel) release(s *subscription) {
	c.mu.Lock()
	if c.cur == s {
		c.cur = nil
		c.last = StateClosed
	}
	c.mu.Unlock()
}

// State 当前状态
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return State(c.cur.state.Load())
	}
	return c.last
}

// Stats 当前订阅统计；无订阅时 ok 为 false
func (c *Channel) Stats() (Stats, bool) {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return Stats{}, false
	}
	return s.stats(), true
}

type subscription struct {
	id      string
	cfg     Config
	handler Handler
	ch      *Channel
	conn    net.Conn
	done    chan struct{}
	since   time.Time
	state   atomic.Int32

	cancelDial context.CancelFunc

	// emitMu 串行化事件投递与停止，保证停止后不再回调
	emitMu  sync.Mutex
	stopped bool

	frames      atomic.Uint64
	frameErrors atomic.Uint64
	bytes       atomic.Uint64
}

// stop 标记停止并关闭连接；首次调用返回 true
func (s *subscription) stop() bool {
	s.emitMu.Lock()
	if s.stopped {
		s.emitMu.Unlock()
		return false
	}
	s.stopped = true
	wasActive := State(s.state.Load()) == StateStreaming
	s.state.Store(int32(StateClosed))
	conn := s.conn
	s.emitMu.Unlock()

	if conn != nil {
		_ = conn.Close()
	} else if s.cancelDial != nil {
		s.cancelDial()
	}
	if wasActive && s.ch.onActive != nil {
		s.ch.onActive(false)
	}
	return true
}

func (s *subscription) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.stopped {
		return
	}
	ev.SubscriptionID = s.id
	ev.At = time.Now()
	s.handler(ev)
}

// terminate 投递终止事件并关闭；已停止时什么也不做
func (s *subscription) terminate(ev Event) {
	s.emitMu.Lock()
	if s.stopped {
		s.emitMu.Unlock()
		return
	}
	s.stopped = true
	s.state.Store(int32(StateClosed))
	ev.SubscriptionID = s.id
	ev.At = time.Now()
	s.handler(ev)
	s.emitMu.Unlock()

	_ = s.conn.Close()
	if s.ch.onActive != nil {
		s.ch.onActive(false)
	}
	if ev.Kind == EventError {
		s.ch.logger.Warn("push subscription failed", zap.String("id", s.id), zap.Error(ev.Err))
	} else {
		s.ch.logger.Info("push subscription ended by peer", zap.String("id", s.id))
	}
}

func (s *subscription) readLoop() {
	defer close(s.done)

	addr := s.cfg.Addr()
	dec := amr.NewDecoder(s.cfg.Profile, amr.WithMaxBodyLength(s.cfg.MaxFrameBytes))
	buf := make([]byte, s.cfg.ReadBufferBytes)
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.bytes.Add(uint64(n))
			dec.Feed(buf[:n])
			derr := dec.Drain(func(f amr.Frame, ferr error) {
				if ferr != nil {
					s.frameErrors.Add(1)
					s.count("malformed")
					s.emit(Event{Kind: EventFrameError, Frame: f, Err: ferr})
					return
				}
				s.frames.Add(1)
				s.count("ok")
				s.emit(Event{Kind: EventFrame, Frame: f})
			})
			if derr != nil {
				var ae *amr.Error
				if errors.As(derr, &ae) {
					ae.Addr = addr
				}
				s.count("corrupt")
				s.terminate(Event{Kind: EventError, Err: derr})
				return
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.terminate(Event{Kind: EventEnd})
			default:
				kind := amr.KindConnection
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					kind = amr.KindTimeout
				}
				s.terminate(Event{Kind: EventError, Err: &amr.Error{Kind: kind, Op: "read", Addr: addr, Err: err}})
			}
			return
		}
	}
}

func (s *subscription) count(result string) {
	if s.ch.onFrame != nil {
		s.ch.onFrame(result)
	}
}

func (s *subscription) stats() Stats {
	return Stats{
		ID:          s.id,
		State:       State(s.state.Load()).String(),
		Addr:        s.cfg.Addr(),
		Frames:      s.frames.Load(),
		FrameErrors: s.frameErrors.Load(),
		Bytes:       s.bytes.Load(),
		Since:       s.since,
	}
}
