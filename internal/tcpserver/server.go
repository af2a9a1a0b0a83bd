// Package tcpserver 模拟 AMR 使用的 TCP 监听：accept 循环、连接数限流与连接读写循环。
package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
)

// Server 单端口 TCP 服务
type Server struct {
	cfg     cfgpkg.TCPConfig
	logger  *zap.Logger
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	stopped atomic.Bool
	limiter *ConnectionLimiter

	nextConnID uint64
	connsMu    sync.Mutex
	conns      map[uint64]*ConnContext

	handler func(*ConnContext)
	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)
}

// New 创建服务；MaxConnections>0 时启用连接数限流
func New(cfg cfgpkg.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		stopC:  make(chan struct{}),
		conns:  make(map[uint64]*ConnContext),
	}
	if cfg.MaxConnections > 0 {
		s.limiter = NewConnectionLimiter(cfg.MaxConnections, 100*time.Millisecond)
	}
	return s
}

// SetConnHandler 每个新连接调用一次（在连接协程中，返回后才开始读循环）
func (s *Server) SetConnHandler(h func(*ConnContext)) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int)) {
	s.onAccept, s.onRecvBytes = onAccept, onRecvBytes
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("tcp listener started", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Acquire(context.Background()); err != nil {
				s.logger.Warn("connection rejected", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
				_ = conn.Close()
				continue
			}
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn)
		s.connsMu.Lock()
		s.conns[cc.id] = cc
		s.connsMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.connsMu.Lock()
				delete(s.conns, cc.id)
				s.connsMu.Unlock()
				if s.limiter != nil {
					s.limiter.Release()
				}
			}()
			if s.handler != nil {
				s.handler(cc)
			}
			cc.run()
		}()
	}
}

// Addr 实际监听地址（端口为0时可取得分配的端口）
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Listening 是否在监听
func (s *Server) Listening() bool { return s.ln != nil && !s.stopped.Load() }

// ActiveConnections 当前连接数
func (s *Server) ActiveConnections() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// MaxConnections 最大连接数，0 表示不限
func (s *Server) MaxConnections() int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.MaxConnections()
}

// LimiterStats 未启用限流时为 nil
func (s *Server) LimiterStats() *LimiterStats {
	if s.limiter == nil {
		return nil
	}
	st := s.limiter.Stats()
	return &st
}

// Shutdown 关闭监听与所有连接并等待连接协程退出
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopC)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.connsMu.Lock()
	for _, cc := range s.conns {
		_ = cc.Close()
	}
	s.connsMu.Unlock()

	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
