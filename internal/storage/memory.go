package storage

import (
	"context"
	"sync"
	"time"

	"github.com/taoyao-code/amr-console/internal/storage/models"
)

// MemoryRepo 进程内实现，数据库未启用时使用；审计日志只保留最近 capacity 条
type MemoryRepo struct {
	mu       sync.RWMutex
	settings map[string]models.Setting
	logs     []models.CommandLog // 环形缓冲
	next     int
	full     bool
}

// NewMemoryRepo 创建内存仓库
func NewMemoryRepo(capacity int) *MemoryRepo {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryRepo{
		settings: make(map[string]models.Setting),
		logs:     make([]models.CommandLog, capacity),
	}
}

// GetSetting 读取设置
func (m *MemoryRepo) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return s.Value, nil
}

// PutSetting 写入设置
func (m *MemoryRepo) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

// AppendCommandLog 追加审计日志
func (m *MemoryRepo) AppendCommandLog(_ context.Context, log *models.CommandLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	m.logs[m.next] = *log
	m.next++
	if m.next == len(m.logs) {
		m.next = 0
		m.full = true
	}
	return nil
}

// ListRecentCommandLogs 最新的在前
func (m *MemoryRepo) ListRecentCommandLogs(_ context.Context, limit int) ([]models.CommandLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.logs)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]models.CommandLog, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.logs)) % len(m.logs)
		out = append(out, m.logs[idx])
	}
	return out, nil
}
