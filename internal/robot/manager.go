// Package robot 当前 AMR 的连接管理：地址、命令执行、推送订阅与审计。
package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/amr-console/internal/amrclient"
	"github.com/taoyao-code/amr-console/internal/command"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/pushsub"
	"github.com/taoyao-code/amr-console/internal/storage"
	"github.com/taoyao-code/amr-console/internal/storage/models"
	redisstorage "github.com/taoyao-code/amr-console/internal/storage/redis"
)

// Caller 请求/响应调用
type Caller interface {
	Call(ctx context.Context, req amrclient.Request) (*amrclient.Response, error)
}

// Options 管理器参数
type Options struct {
	CallTimeout     time.Duration
	DialTimeout     time.Duration // 推送建连
	PushIdleTimeout time.Duration
	MaxFrameBytes   uint32
	ReadBufferBytes int
	TelemetryBuffer int // 待写入快照队列长度，默认64
}

// Deps 管理器依赖；Telemetry/Hub/Jog 为 nil 时使用进程内默认实现
type Deps struct {
	Logger    *zap.Logger
	Builder   *command.Builder
	Client    Caller
	Push      *pushsub.Channel
	Repo      storage.Repo
	Telemetry TelemetryStore
	Hub       *Hub
	Jog       *JogThrottle
}

// Result 一次命令执行结果
type Result struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	APIID   uint16          `json:"api_id"`
	Body    json.RawMessage `json:"body,omitempty"`
	Latency time.Duration   `json:"latency"`
}

// Manager 持有当前 AMR 地址与当前推送订阅
type Manager struct {
	logger    *zap.Logger
	builder   *command.Builder
	client    Caller
	push      *pushsub.Channel
	repo      storage.Repo
	telemetry TelemetryStore
	writer    *telemetryWriter
	hub       *Hub
	jog       *JogThrottle
	opts      Options

	mu   sync.RWMutex
	host string

	// pushMu 串行化地址切换与推送订阅，订阅总是指向当前地址
	pushMu sync.Mutex

	onThrottled func()
}

// NewManager 创建管理器
func NewManager(deps Deps, opts Options) *Manager {
	m := &Manager{
		logger:    deps.Logger,
		builder:   deps.Builder,
		client:    deps.Client,
		push:      deps.Push,
		repo:      deps.Repo,
		telemetry: deps.Telemetry,
		hub:       deps.Hub,
		jog:       deps.Jog,
		opts:      opts,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.builder == nil {
		m.builder = command.NewBuilder(nil)
	}
	if m.push == nil {
		m.push = pushsub.New(m.logger)
	}
	if m.repo == nil {
		m.repo = storage.NewMemoryRepo(0)
	}
	if m.telemetry == nil {
		m.telemetry = NewMemoryTelemetry()
	}
	if m.hub == nil {
		m.hub = NewHub(0)
	}
	if m.jog == nil {
		m.jog = NewJogThrottle(0, 0)
	}
	m.writer = newTelemetryWriter(m.telemetry, opts.TelemetryBuffer, m.logger)
	return m
}

// SetMetricsCallbacks 设置指标回调
func (m *Manager) SetMetricsCallbacks(onThrottled func()) { m.onThrottled = onThrottled }

// Hub 推送事件扇出器
func (m *Manager) Hub() *Hub { return m.hub }

// ---------- 地址 ----------

// Host 当前地址，未设置时为空
func (m *Manager) Host() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.host
}

// SetHost 设置并持久化地址；地址变化时拆除现有推送订阅
func (m *Manager) SetHost(ctx context.Context, host string) error {
	host = strings.TrimSpace(host)
	if !validHost(host) {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	if err := m.repo.PutSetting(ctx, storage.KeyAMRHost, host); err != nil {
		return fmt.Errorf("persist amr host: %w", err)
	}

	m.mu.Lock()
	prev := m.host
	m.host = host
	m.mu.Unlock()

	if prev != host {
		if prev != "" {
			m.push.Unsubscribe()
		}
		m.logger.Info("amr host changed", zap.String("from", prev), zap.String("to", host))
	}
	return nil
}

// LoadHost 启动时恢复地址：已持久化的优先，其次 fallback
func (m *Manager) LoadHost(ctx context.Context, fallback string) error {
	host, err := m.repo.GetSetting(ctx, storage.KeyAMRHost)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		host = strings.TrimSpace(fallback)
	default:
		return fmt.Errorf("load amr host: %w", err)
	}
	if host == "" {
		return nil
	}
	if !validHost(host) {
		return fmt.Errorf("%w: %q", ErrInvalidHost, host)
	}
	m.mu.Lock()
	m.host = host
	m.mu.Unlock()
	m.logger.Info("amr host restored", zap.String("host", host))
	return nil
}

// validHost IP 或主机名，不带端口
func validHost(h string) bool {
	if h == "" || len(h) > 253 {
		return false
	}
	if net.ParseIP(h) != nil {
		return true
	}
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
		default:
			return false
		}
	}
	return !strings.HasPrefix(h, "-") && !strings.HasPrefix(h, ".")
}

// ---------- 命令 ----------

// Execute 向当前 AMR 发送命令；非零 ret_code 返回 *RemoteError。每次执行写一条审计日志。
func (m *Manager) Execute(ctx context.Context, cmd command.Command) (*Result, error) {
	host := m.Host()
	if host == "" {
		return nil, ErrHostNotSet
	}

	req := amrclient.RequestFor(host, cmd)
	req.Timeout = m.opts.CallTimeout
	id := uuid.NewString()
	start := time.Now()

	resp, err := m.client.Call(ctx, req)
	var body json.RawMessage
	if err == nil {
		body = resp.Body
		err = checkRetCode(cmd.Name, body)
	}
	latency := time.Since(start)
	m.audit(ctx, id, cmd, host, latency, err)
	if err != nil {
		return nil, err
	}
	return &Result{ID: id, Name: cmd.Name, APIID: cmd.APIID, Body: body, Latency: latency}, nil
}

func (m *Manager) audit(ctx context.Context, id string, cmd command.Command, host string, latency time.Duration, err error) {
	entry := &models.CommandLog{
		ID:        id,
		Name:      cmd.Name,
		APIID:     int32(cmd.APIID),
		Host:      host,
		Port:      int32(cmd.Port),
		Result:    models.ResultOK,
		LatencyMs: latency.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
		var re *RemoteError
		switch {
		case errors.As(err, &re):
			entry.Result = models.ResultRemote
			code := int32(re.Code)
			entry.RetCode = &code
		case amr.KindOf(err) != 0:
			entry.Result = amr.KindOf(err).String()
		default:
			entry.Result = "error"
		}
	}
	// 调用方取消不应丢审计
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if aerr := m.repo.AppendCommandLog(actx, entry); aerr != nil {
		m.logger.Warn("append command log failed", zap.String("name", cmd.Name), zap.Error(aerr))
	}
}

// RecentCommands 最近的审计日志
func (m *Manager) RecentCommands(ctx context.Context, limit int) ([]models.CommandLog, error) {
	return m.repo.ListRecentCommandLogs(ctx, limit)
}

func (m *Manager) run(ctx context.Context, cmd command.Command, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return m.Execute(ctx, cmd)
}

// MoveToStation 导航到站点
func (m *Manager) MoveToStation(ctx context.Context, stationID string) (*Result, error) {
	cmd, err := m.builder.MoveToStation(stationID)
	return m.run(ctx, cmd, err)
}

// Jog 点动；stop 不受限流
func (m *Manager) Jog(ctx context.Context, d command.Direction) (*Result, error) {
	cmd, err := m.builder.Jog(d)
	if err != nil {
		return nil, err
	}
	if d != command.DirStop && !m.jog.Allow() {
		if m.onThrottled != nil {
			m.onThrottled()
		}
		return nil, ErrJogThrottled
	}
	return m.Execute(ctx, cmd)
}

// JogStats 点动限流统计
func (m *Manager) JogStats() ThrottleStats { return m.jog.Stats() }

// Lift 顶升
func (m *Manager) Lift(ctx context.Context, a command.LiftAction) (*Result, error) {
	cmd, err := m.builder.Lift(a)
	return m.run(ctx, cmd, err)
}

// RelocateRequest 重定位参数；Auto 为 true 时忽略坐标
type RelocateRequest struct {
	Auto  bool
	X     float64
	Y     float64
	Angle float64
}

// Relocate 重定位
func (m *Manager) Relocate(ctx context.Context, r RelocateRequest) (*Result, error) {
	if r.Auto {
		cmd, err := m.builder.RelocateAuto()
		return m.run(ctx, cmd, err)
	}
	cmd, err := m.builder.RelocateManual(r.X, r.Y, r.Angle)
	return m.run(ctx, cmd, err)
}

// LaserScan 激光数据
func (m *Manager) LaserScan(ctx context.Context) (*Result, error) {
	cmd, err := m.builder.LaserScan()
	return m.run(ctx, cmd, err)
}

// ListMaps 地图名称列表
func (m *Manager) ListMaps(ctx context.Context) ([]string, error) {
	cmd, err := m.builder.MapList()
	res, err := m.run(ctx, cmd, err)
	if err != nil {
		return nil, err
	}
	var out struct {
		Maps []string `json:"maps"`
	}
	if len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &out); err != nil {
			return nil, fmt.Errorf("decode map list: %w", err)
		}
	}
	if out.Maps == nil {
		out.Maps = []string{}
	}
	return out.Maps, nil
}

// DownloadMap 下载地图文档
func (m *Manager) DownloadMap(ctx context.Context, name string) (json.RawMessage, error) {
	cmd, err := m.builder.MapDownload(name)
	res, err := m.run(ctx, cmd, err)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// UploadMap 上传地图文档
func (m *Manager) UploadMap(ctx context.Context, doc json.RawMessage) (*Result, error) {
	cmd, err := m.builder.MapUpload(doc)
	return m.run(ctx, cmd, err)
}

// StartSlam 启动建图
func (m *Manager) StartSlam(ctx context.Context, opts command.SlamOptions) (*Result, error) {
	cmd, err := m.builder.SlamStart(opts)
	return m.run(ctx, cmd, err)
}

// StopSlam 结束建图
func (m *Manager) StopSlam(ctx context.Context) (*Result, error) {
	cmd, err := m.builder.SlamStop()
	return m.run(ctx, cmd, err)
}

// ---------- 推送 ----------

// Subscribe 订阅当前 AMR 的推送，替换已有订阅
func (m *Manager) Subscribe(ctx context.Context) (string, error) {
	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	host := m.Host()
	if host == "" {
		return "", ErrHostNotSet
	}
	ep := m.builder.Catalog().Push
	profile, err := ep.HeaderProfile()
	if err != nil {
		return "", err
	}
	cfg := pushsub.Config{
		Host:            host,
		Port:            ep.Port,
		Profile:         profile,
		DialTimeout:     m.opts.DialTimeout,
		IdleTimeout:     m.opts.PushIdleTimeout,
		MaxFrameBytes:   m.opts.MaxFrameBytes,
		ReadBufferBytes: m.opts.ReadBufferBytes,
	}
	return m.push.Subscribe(ctx, cfg, func(ev pushsub.Event) { m.onPushEvent(host, ev) })
}

// Unsubscribe 结束推送订阅
func (m *Manager) Unsubscribe() { m.push.Unsubscribe() }

// PushState 推送通道状态
func (m *Manager) PushState() pushsub.State { return m.push.State() }

// PushStats 推送订阅统计
func (m *Manager) PushStats() (pushsub.Stats, bool) { return m.push.Stats() }

func (m *Manager) onPushEvent(host string, ev pushsub.Event) {
	if ev.Kind == pushsub.EventFrame {
		m.writer.offer(redisstorage.Snapshot{Host: host, APIID: ev.Frame.APIID, Body: ev.Frame.Body, ReceivedAt: ev.At})
	}
	m.hub.Publish(ev)
}

// TelemetryDropped 因存储过慢被丢弃的快照数
func (m *Manager) TelemetryDropped() uint64 { return m.writer.dropped.Load() }

// Close 结束推送订阅并停止快照写协程
func (m *Manager) Close() {
	m.push.Unsubscribe()
	m.writer.close()
}

// LatestTelemetry 当前 AMR 最近一帧推送
func (m *Manager) LatestTelemetry(ctx context.Context) (redisstorage.Snapshot, error) {
	host := m.Host()
	if host == "" {
		return redisstorage.Snapshot{}, ErrHostNotSet
	}
	return m.telemetry.Latest(ctx, host)
}
