// Package simulator 模拟 AMR：请求/响应端口按 apiId 应答，推送端口周期性发送位姿。
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/amr-console/internal/config"
	"github.com/taoyao-code/amr-console/internal/protocol/amr"
	"github.com/taoyao-code/amr-console/internal/tcpserver"
)

type apiIDs struct {
	mapList, mapDownload, mapUpload uint16
}

// Robot 模拟设备
type Robot struct {
	cfg     cfgpkg.SimulatorConfig
	cat     *amr.Catalog
	logger  *zap.Logger
	ids     apiIDs
	maps    *mapStore
	servers map[string]*tcpserver.Server // 名称 -> 监听

	onAccept func(port string)
}

// New 创建模拟设备；cat 为 nil 时使用内置目录
func New(cfg cfgpkg.SimulatorConfig, cat *amr.Catalog, logger *zap.Logger) (*Robot, error) {
	if cat == nil {
		cat = amr.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PushInterval <= 0 {
		return nil, fmt.Errorf("push interval must be positive, got %s", cfg.PushInterval)
	}
	r := &Robot{
		cfg:     cfg,
		cat:     cat,
		logger:  logger,
		maps:    newMapStore(),
		servers: make(map[string]*tcpserver.Server),
	}
	for name, dst := range map[string]*uint16{
		amr.APIMapList:     &r.ids.mapList,
		amr.APIMapDownload: &r.ids.mapDownload,
		amr.APIMapUpload:   &r.ids.mapUpload,
	} {
		ep, err := cat.Lookup(name)
		if err != nil {
			return nil, err
		}
		*dst = ep.APIID
	}
	return r, nil
}

// SetMetricsCallbacks 设置指标回调
func (r *Robot) SetMetricsCallbacks(onAccept func(port string)) { r.onAccept = onAccept }

// listeners 名称 -> 端口
func (r *Robot) listeners() map[string]int {
	return map[string]int{
		"api":    r.cfg.APIPort,
		"motion": r.cfg.MotionPort,
		"task":   r.cfg.TaskPort,
		"map":    r.cfg.MapPort,
		"slam":   r.cfg.SlamPort,
		"push":   r.cfg.PushPort,
	}
}

// Start 启动全部监听；任一失败则关闭已启动的监听
func (r *Robot) Start() error {
	for name, port := range r.listeners() {
		lc := r.cfg.Listener(port)
		if name == "push" {
			lc.ReadTimeout = 0
		}
		srv := tcpserver.New(lc, r.logger.With(zap.String("listener", name)))
		if name == "push" {
			srv.SetConnHandler(r.servePush)
		} else {
			srv.SetConnHandler(r.serveRequests)
		}
		label := strconv.Itoa(port)
		srv.SetMetricsCallbacks(func() {
			if r.onAccept != nil {
				r.onAccept(label)
			}
		}, nil)
		if err := srv.Start(); err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = r.Shutdown(ctx)
			cancel()
			return fmt.Errorf("listen %s: %w", name, err)
		}
		r.servers[name] = srv
	}
	r.logger.Info("amr simulator started", zap.Strings("listeners", r.Names()))
	return nil
}

// Names 已启动监听的名称
func (r *Robot) Names() []string {
	out := make([]string, 0, len(r.servers))
	for n := range r.servers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Server 按名称取监听（api/motion/task/map/slam/push）
func (r *Robot) Server(name string) *tcpserver.Server { return r.servers[name] }

// Shutdown 关闭全部监听
func (r *Robot) Shutdown(ctx context.Context) error {
	var errs []error
	for name, srv := range r.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
