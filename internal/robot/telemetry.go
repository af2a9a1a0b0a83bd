package robot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	redisstorage "github.com/taoyao-code/amr-console/internal/storage/redis"
)

// TelemetryStore 推送快照存储
type TelemetryStore interface {
	Put(ctx context.Context, s redisstorage.Snapshot) error
	// Latest 无数据时返回 ErrNoSnapshot
	Latest(ctx context.Context, host string) (redisstorage.Snapshot, error)
}

// redisTelemetry 把缓存未命中统一成 ErrNoSnapshot
type redisTelemetry struct {
	cache *redisstorage.TelemetryCache
}

// NewRedisTelemetry 基于 redis 的快照存储
func NewRedisTelemetry(cache *redisstorage.TelemetryCache) TelemetryStore {
	return redisTelemetry{cache: cache}
}

func (r redisTelemetry) Put(ctx context.Context, s redisstorage.Snapshot) error {
	return r.cache.Put(ctx, s)
}

func (r redisTelemetry) Latest(ctx context.Context, host string) (redisstorage.Snapshot, error) {
	s, err := r.cache.Latest(ctx, host)
	if errors.Is(err, redisstorage.ErrNoSnapshot) {
		return s, ErrNoSnapshot
	}
	return s, err
}

// MemoryTelemetry redis 未启用时的进程内快照
type MemoryTelemetry struct {
	mu     sync.RWMutex
	byHost map[string]redisstorage.Snapshot
}

// NewMemoryTelemetry 创建进程内快照存储
func NewMemoryTelemetry() *MemoryTelemetry {
	return &MemoryTelemetry{byHost: make(map[string]redisstorage.Snapshot)}
}

func (m *MemoryTelemetry) Put(_ context.Context, s redisstorage.Snapshot) error {
	m.mu.Lock()
	m.byHost[s.Host] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryTelemetry) Latest(_ context.Context, host string) (redisstorage.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byHost[host]
	if !ok {
		return redisstorage.Snapshot{}, ErrNoSnapshot
	}
	return s, nil
}

// telemetryWriter 在独立协程中写入快照；推送读协程只做非阻塞投递，队列满时丢弃
type telemetryWriter struct {
	store   TelemetryStore
	logger  *zap.Logger
	queue   chan redisstorage.Snapshot
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newTelemetryWriter(store TelemetryStore, buffer int, logger *zap.Logger) *telemetryWriter {
	if buffer <= 0 {
		buffer = 64
	}
	w := &telemetryWriter{
		store:  store,
		logger: logger,
		queue:  make(chan redisstorage.Snapshot, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *telemetryWriter) offer(s redisstorage.Snapshot) bool {
	select {
	case w.queue <- s:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *telemetryWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case s := <-w.queue:
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			if err := w.store.Put(ctx, s); err != nil {
				w.logger.Debug("store telemetry failed", zap.String("host", s.Host), zap.Error(err))
			}
			cancel()
		}
	}
}

// close 停止写协程，队列中未写入的快照被丢弃
func (w *telemetryWriter) close() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}
