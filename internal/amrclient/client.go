// Package amrclient 请求/响应客户端：每次调用一条 TCP 连接，发送一帧，收到第一帧即返回并关闭连接。
package amrclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/command"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
)

// ErrInvalidRequest 请求参数缺失
var ErrInvalidRequest = errors.New("invalid amr request")

const readBufferSize = 4096

// Request 一次调用
type Request struct {
	Host     string
	Port     int
	Profile  amr.Profile
	APIID    uint16
	Sequence uint32 // 不用于关联，默认0
	Body     any
	Timeout  time.Duration // 0 使用客户端默认值
}

// RequestFor 由命令构造发往 host 的请求
func RequestFor(host string, cmd command.Command) Request {
	return Request{Host: host, Port: cmd.Port, Profile: cmd.Profile, APIID: cmd.APIID, Body: cmd.Body}
}

// Addr host:port
func (r Request) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r Request) validate() error {
	if r.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidRequest)
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidRequest, r.Port)
	}
	if r.Profile == nil {
		return fmt.Errorf("%w: no header profile", ErrInvalidRequest)
	}
	return nil
}

// Response 第一帧响应
type Response struct {
	amr.Frame
	Addr    string
	Latency time.Duration
}

// Client 请求/响应客户端，可并发使用，调用之间不共享连接
type Client struct {
	logger         *zap.Logger
	dialTimeout    time.Duration
	defaultTimeout time.Duration
	maxRequest     uint32 // 0 表示仅受32位长度字段限制
	maxResponse    uint32
	breakers       *breakerSet

	onCall      func(apiID uint16, result string, d time.Duration)
	onRecvBytes func(n int)
}

// Option 客户端选项
type Option func(*Client)

// WithDialTimeout 建连超时
func WithDialTimeout(d time.Duration) Option { return func(c *Client) { c.dialTimeout = d } }

// WithDefaultTimeout 请求未指定超时时使用
func WithDefaultTimeout(d time.Duration) Option { return func(c *Client) { c.defaultTimeout = d } }

// WithMaxRequestBytes 请求正文上限，超出返回 PayloadTooLarge 且不建连
func WithMaxRequestBytes(n uint32) Option { return func(c *Client) { c.maxRequest = n } }

// WithMaxResponseBytes 响应正文上限，超出视为帧头损坏
func WithMaxResponseBytes(n uint32) Option { return func(c *Client) { c.maxResponse = n } }

// WithBreaker 按地址熔断；threshold <= 0 关闭
func WithBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Client) { c.breakers = newBreakerSet(threshold, timeout) }
}

// New 创建客户端
func New(logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		logger:         logger,
		dialTimeout:    3 * time.Second,
		defaultTimeout: 10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetMetricsCallbacks 设置指标回调
func (c *Client) SetMetricsCallbacks(onCall func(apiID uint16, result string, d time.Duration), onRecvBytes func(int)) {
	c.onCall, c.onRecvBytes = onCall, onRecvBytes
}

// BreakerStats 各地址熔断器状态
func (c *Client) BreakerStats() map[string]BreakerStats { return c.breakers.stats() }

// Call 发送一帧并等待第一帧响应。失败不重试。
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	addr := req.Addr()

	frame, err := amr.Encode(req.Profile, req.APIID, req.Sequence, req.Body)
	if err == nil && c.maxRequest > 0 && len(frame)-amr.HeaderSize > int(c.maxRequest) {
		err = &amr.Error{Kind: amr.KindPayloadTooLarge, Op: "encode", APIID: req.APIID,
			Err: fmt.Errorf("body is %d bytes, limit %d", len(frame)-amr.HeaderSize, c.maxRequest)}
	}
	if err != nil {
		c.finish(req, addr, start, err)
		return nil, err
	}

	br := c.breakers.get(addr)
	if br != nil {
		if berr := br.allow(); berr != nil {
			err = &amr.Error{Kind: amr.KindConnection, Op: "dial", Addr: addr, APIID: req.APIID, Err: berr}
			c.finish(req, addr, start, err)
			return nil, err
		}
	}

	resp, err := c.roundTrip(ctx, req, addr, frame)
	if br != nil {
		br.record(isTransportFailure(err))
	}
	if resp != nil {
		resp.Latency = time.Since(start)
	}
	c.finish(req, addr, start, err)
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, req Request, addr string, frame []byte) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify(ctx, "dial", addr, req.APIID, err)
	}
	defer conn.Close()

	// 取消或超时时直接销毁连接，阻塞中的读写立即返回
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	if _, err := conn.Write(frame); err != nil {
		return nil, classify(ctx, "write", addr, req.APIID, err)
	}

	dec := amr.NewDecoder(req.Profile, amr.WithMarkerCheck(false), amr.WithMaxBodyLength(c.maxResponse))
	buf := make([]byte, readBufferSize)
	for {
		n, rerr := conn.Read(buf)
		if n > 0 {
			if c.onRecvBytes != nil {
				c.onRecvBytes(n)
			}
			dec.Feed(buf[:n])
			f, derr := dec.Next()
			switch {
			case derr == nil:
				return &Response{Frame: f, Addr: addr}, nil
			case errors.Is(derr, amr.ErrNeedMoreData):
			default:
				var ae *amr.Error
				if errors.As(derr, &ae) {
					ae.Addr = addr
				}
				return nil, derr
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && ctx.Err() == nil {
				return nil, &amr.Error{Kind: amr.KindPrematureClose, Op: "read", Addr: addr, APIID: req.APIID,
					Err: fmt.Errorf("closed with %d buffered bytes", dec.Buffered())}
			}
			return nil, classify(ctx, "read", addr, req.APIID, rerr)
		}
	}
}

func (c *Client) finish(req Request, addr string, start time.Time, err error) {
	elapsed := time.Since(start)
	result := resultLabel(err)
	if c.onCall != nil {
		c.onCall(req.APIID, result, elapsed)
	}
	if err != nil {
		c.logger.Warn("amr call failed",
			zap.String("addr", addr),
			zap.Uint16("api_id", req.APIID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	c.logger.Debug("amr call ok",
		zap.String("addr", addr),
		zap.Uint16("api_id", req.APIID),
		zap.Duration("elapsed", elapsed))
}

// classify 将套接字错误归类：调用方期限或套接字超时为 Timeout，其余为 Connection
func classify(ctx context.Context, op, addr string, apiID uint16, err error) error {
	kind := amr.KindConnection
	if cerr := ctx.Err(); cerr != nil {
		if errors.Is(cerr, context.DeadlineExceeded) {
			kind = amr.KindTimeout
		}
		err = cerr
	} else {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			kind = amr.KindTimeout
		}
	}
	return &amr.Error{Kind: kind, Op: op, Addr: addr, APIID: apiID, Err: err}
}

func isTransportFailure(err error) bool {
	switch amr.KindOf(err) {
	case amr.KindConnection, amr.KindTimeout, amr.KindPrematureClose:
		return true
	}
	return false
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if k := amr.KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
